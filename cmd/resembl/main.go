package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/resembl/resembl/internal/config"
	"github.com/resembl/resembl/internal/sqlstore"
	"github.com/resembl/resembl/pkg/lshindex"
	"github.com/resembl/resembl/pkg/merge"
	"github.com/resembl/resembl/pkg/query"
	"github.com/resembl/resembl/pkg/store"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "resembl v%s: assembly snippet similarity search\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: resembl <command> [arguments]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  init                  Create the store and cache directory\n")
		fmt.Fprintf(os.Stderr, "  add <name> <file>     Add a snippet from file under the given name\n")
		fmt.Fprintf(os.Stderr, "  find <file>           Find the closest stored snippets to file\n")
		fmt.Fprintf(os.Stderr, "  export <dir>          Export every snippet to <dir>/<name>.asm\n")
		fmt.Fprintf(os.Stderr, "  export-yara <path>    Export every snippet as a YARA rule file\n")
		fmt.Fprintf(os.Stderr, "  merge <source-db>     Merge another store's snippets into this one\n")
		fmt.Fprintf(os.Stderr, "  compare <c1> <c2>     Print every similarity metric between two checksums\n")
		fmt.Fprintf(os.Stderr, "  list [start] [end]    List snippets in insertion-order range\n")
		fmt.Fprintf(os.Stderr, "  search <pattern>      Find snippets by substring match on name\n")
		fmt.Fprintf(os.Stderr, "  rm <checksum>         Delete a snippet by checksum\n")
		fmt.Fprintf(os.Stderr, "  stats                 Print corpus statistics\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	session, err := sqlstore.Open(cfg.StoreURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	s := store.New(session)
	cache, err := lshindex.NewCache(cfg.CacheDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open cache directory: %v\n", err)
		os.Exit(1)
	}
	pipeline := query.NewPipeline(s, cache)

	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	switch cmd {
	case "init":
		initCmd(cfg)
	case "add":
		addCmd(s, cfg, args)
	case "find":
		findCmd(pipeline, cfg, args)
	case "export":
		exportCmd(s, args)
	case "export-yara":
		exportYaraCmd(s, args)
	case "merge":
		mergeCmd(s, args)
	case "compare":
		compareCmd(s, cfg, args)
	case "list":
		listCmd(s, args)
	case "search":
		searchCmd(s, args)
	case "rm":
		rmCmd(s, args)
	case "stats":
		statsCmd(s)
	case "help":
		flag.Usage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
}

func initCmd(cfg config.Config) {
	fmt.Printf("store ready at %s (cache: %s)\n", cfg.StoreURL, cfg.CacheDir)
}

func addCmd(s *store.Store, cfg config.Config, args []string) {
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "Error: 'add' requires a name and a file path\n")
		os.Exit(1)
	}
	code, err := os.ReadFile(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read %s: %v\n", args[1], err)
		os.Exit(1)
	}

	snip, err := s.Add(args[0], string(code), cfg.NgramSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to add snippet: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s %v\n", snip.Checksum[:16], snip.Names)
}

func findCmd(pipeline *query.Pipeline, cfg config.Config, args []string) {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Error: 'find' requires a file path\n")
		os.Exit(1)
	}
	code, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read %s: %v\n", args[0], err)
		os.Exit(1)
	}

	count, matches, err := pipeline.FindMatches(
		string(code), cfg.TopN, cfg.LSHThreshold, true, cfg.NgramSize, cfg.JaccardWeight,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: find failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d candidates considered\n", count)
	for _, m := range matches {
		fmt.Printf("%.2f  %s  %v\n", m.Hybrid, m.Snippet.Checksum[:16], m.Snippet.Names)
	}
}

func exportCmd(s *store.Store, args []string) {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Error: 'export' requires a directory\n")
		os.Exit(1)
	}
	if err := s.Export(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: export failed: %v\n", err)
		os.Exit(1)
	}
}

func exportYaraCmd(s *store.Store, args []string) {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Error: 'export-yara' requires a file path\n")
		os.Exit(1)
	}
	if err := s.ExportYara(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: export-yara failed: %v\n", err)
		os.Exit(1)
	}
}

func mergeCmd(s *store.Store, args []string) {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Error: 'merge' requires a source database path\n")
		os.Exit(1)
	}
	result, err := merge.Merge(s, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: merge failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("added=%d updated=%d skipped=%d total_source=%d elapsed=%s\n",
		result.Added, result.Updated, result.Skipped, result.TotalSource, result.Elapsed)
}

func compareCmd(s *store.Store, cfg config.Config, args []string) {
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "Error: 'compare' requires two checksums\n")
		os.Exit(1)
	}
	cmp, err := s.Compare(args[0], args[1], cfg.JaccardWeight)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: compare failed: %v\n", err)
		os.Exit(1)
	}
	if cmp == nil {
		fmt.Fprintf(os.Stderr, "Error: one or both checksums not found\n")
		os.Exit(1)
	}
	fmt.Printf("jaccard=%.4f levenshtein=%.2f cfg=%.4f hybrid=%.2f shared_token_types=%d\n",
		cmp.Jaccard, cmp.LevenshteinRatio, cmp.CFGSimilarity, cmp.Hybrid, cmp.SharedTokenTypes)
	if cmp.DiffText != "" {
		fmt.Print(cmp.DiffText)
	}
}

func listCmd(s *store.Store, args []string) {
	start, end := 0, 0
	if len(args) == 2 {
		var err error
		start, err = strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid start %q\n", args[0])
			os.Exit(1)
		}
		end, err = strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid end %q\n", args[1])
			os.Exit(1)
		}
	} else if len(args) != 0 {
		fmt.Fprintf(os.Stderr, "Error: 'list' takes zero or two arguments (start, end)\n")
		os.Exit(1)
	}

	snippets, err := s.List(start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: list failed: %v\n", err)
		os.Exit(1)
	}
	for _, snip := range snippets {
		fmt.Printf("%s  %v  tags=%v  collection=%q\n", snip.Checksum[:16], snip.Names, snip.Tags, snip.Collection)
	}
}

func searchCmd(s *store.Store, args []string) {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Error: 'search' requires a name pattern\n")
		os.Exit(1)
	}
	snippets, err := s.SearchByName(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: search failed: %v\n", err)
		os.Exit(1)
	}
	for _, snip := range snippets {
		fmt.Printf("%s  %v\n", snip.Checksum[:16], snip.Names)
	}
}

func rmCmd(s *store.Store, args []string) {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Error: 'rm' requires a checksum\n")
		os.Exit(1)
	}
	deleted, err := s.Delete(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: rm failed: %v\n", err)
		os.Exit(1)
	}
	if !deleted {
		fmt.Fprintf(os.Stderr, "Error: checksum %q not found\n", args[0])
		os.Exit(1)
	}
}

func statsCmd(s *store.Store) {
	stats, err := s.Stats(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: stats failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("snippets=%d mean_code_length=%.1f vocabulary=%d mean_pairwise_jaccard=%.4f (sample=%d)\n",
		stats.SnippetCount, stats.MeanCodeLength, stats.VocabularySize, stats.MeanPairwiseJaccard, stats.SampleSize)
}
