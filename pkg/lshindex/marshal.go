package lshindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/resembl/resembl/pkg/fingerprint"
)

const indexFormatVersion byte = 1

// Marshal serializes the index to an opaque, versioned binary layout.
// Format is implementation-defined per spec §4.F, but round-trips: the
// (checksum, minhash) pairs are persisted rather than the derived buckets,
// since buckets are cheaply rederived from them on load and this keeps the
// format stable across band/row tuning changes.
func (idx *Index) Marshal() []byte {
	var buf bytes.Buffer
	buf.WriteByte(indexFormatVersion)

	var thresholdBits [8]byte
	binary.BigEndian.PutUint64(thresholdBits[:], math.Float64bits(idx.Threshold))
	buf.Write(thresholdBits[:])

	writeUint32 := func(v int) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	}
	writeUint32(idx.NumPermutations)
	writeUint32(idx.NumBands)
	writeUint32(idx.NumRows)
	writeUint32(len(idx.signatures))

	for checksum, mh := range idx.signatures {
		writeUint32(len(checksum))
		buf.WriteString(checksum)

		serialized := mh.Marshal()
		writeUint32(len(serialized))
		buf.Write(serialized)
	}

	return buf.Bytes()
}

// Unmarshal rebuilds an Index from bytes produced by Marshal.
func Unmarshal(data []byte) (*Index, error) {
	if len(data) < 1+8+4+4+4+4 {
		return nil, fmt.Errorf("lshindex: truncated index data")
	}
	if data[0] != indexFormatVersion {
		return nil, fmt.Errorf("lshindex: unsupported format version %d", data[0])
	}

	r := bytes.NewReader(data[1:])

	var thresholdBits uint64
	if err := binary.Read(r, binary.BigEndian, &thresholdBits); err != nil {
		return nil, fmt.Errorf("lshindex: read threshold: %w", err)
	}
	threshold := math.Float64frombits(thresholdBits)

	readUint32 := func(label string) (int, error) {
		var v uint32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return 0, fmt.Errorf("lshindex: read %s: %w", label, err)
		}
		return int(v), nil
	}

	numPermutations, err := readUint32("num_permutations")
	if err != nil {
		return nil, err
	}
	numBands, err := readUint32("num_bands")
	if err != nil {
		return nil, err
	}
	numRows, err := readUint32("num_rows")
	if err != nil {
		return nil, err
	}
	count, err := readUint32("count")
	if err != nil {
		return nil, err
	}

	idx, err := New(threshold, numPermutations)
	if err != nil {
		return nil, fmt.Errorf("lshindex: rebuild index params: %w", err)
	}
	idx.NumBands = numBands
	idx.NumRows = numRows

	for i := 0; i < count; i++ {
		checksumLen, err := readUint32("checksum length")
		if err != nil {
			return nil, err
		}
		checksumBytes := make([]byte, checksumLen)
		if _, err := r.Read(checksumBytes); err != nil {
			return nil, fmt.Errorf("lshindex: read checksum: %w", err)
		}

		mhLen, err := readUint32("minhash length")
		if err != nil {
			return nil, err
		}
		mhBytes := make([]byte, mhLen)
		if _, err := r.Read(mhBytes); err != nil {
			return nil, fmt.Errorf("lshindex: read minhash: %w", err)
		}
		mh, err := fingerprint.Unmarshal(mhBytes)
		if err != nil {
			return nil, fmt.Errorf("lshindex: unmarshal minhash: %w", err)
		}

		idx.Insert(string(checksumBytes), mh)
	}

	return idx, nil
}
