package weft

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"golang.org/x/term"
)

// printHelp prints the commands table.
func printHelp() {
	colSuccess.Println("Usage: weft <command> [arguments]")
	colSuccess.Println("Run 'weft <command> -h' for subcommand options")
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"plan", "[options]", "Produce a build plan blob from a plan source"},
		{"fetch", "[options]", "Materialize plan sources under the fetch directory"},
		{"build", "[options]", "Fetch and build a plan (plan + fetch + execute)"},
		{"clean", "[options]", "Remove the plan cache and/or a fetch dir's temp package db"},
		{"version, --version", "", "Version information"},
	}

	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usageString = fmt.Sprintf("  %s", c.Cmd)
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}

		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		color.Info.Println(c.Desc)
	}
	fmt.Println()
}

// buildOptions are the flags shared by the plan/fetch/build subcommands,
// per the EXTERNAL INTERFACES CLI surface.
type buildOptions struct {
	asyncN        int
	async         bool
	scriptPath    string
	newFetchDir   bool
	updateFetch   bool
	prefetched    bool
	keepTmp       bool
	verbose       bool
	veryVerbose   bool
	quiet         bool
	debug         bool
	configureArgs stringList
	registerArgs  stringList
	mirror        string
	cacheRemote   string
	dashboard     bool
	planIn        string
	planCacheDig  string
	planOut       string
	fetchDir      string
	installDir    string
	prefix        string
}

// stringList accumulates a repeatable flag, per flag.Value.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// asyncValue backs --async[=N]. It implements the unexported boolFlag
// interface flag.FlagSet recognizes (a String/Set pair plus IsBoolFlag), so
// a bare --async parses as Set("true") while --async=N still parses N.
type asyncValue struct{ o *buildOptions }

func (a asyncValue) String() string {
	if a.o == nil || !a.o.async {
		return "false"
	}
	return strconv.Itoa(a.o.asyncN)
}

func (a asyncValue) IsBoolFlag() bool { return true }

func (a asyncValue) Set(v string) error {
	a.o.async = true
	if v == "" || v == "true" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid --async value %q: %w", v, err)
	}
	a.o.asyncN = n
	return nil
}

func addBuildFlags(fs *flag.FlagSet, o *buildOptions) {
	fs.Var(asyncValue{o: o}, "async", "Run the Async(n) strategy, optionally bounded to N concurrent units (--async=N).")
	fs.StringVar(&o.scriptPath, "script", "", "Emit a shell script to this path instead of running commands.")
	fs.BoolVar(&o.newFetchDir, "new", false, "Require the fetch directory to not already exist.")
	fs.BoolVar(&o.updateFetch, "update", false, "Reuse an existing fetch directory, re-fetching missing units.")
	fs.BoolVar(&o.prefetched, "prefetched", false, "Assume sources are already present; skip fetching (build mode only).")
	fs.BoolVar(&o.keepTmp, "keep-tmp", false, "Keep the temp package database and fetch scratch directories after the run.")
	fs.BoolVar(&o.debug, "debug", false, "Enable debug-level logging.")
	fs.BoolVar(&o.quiet, "q", false, "Silent: suppress step logging.")
	fs.Var(&o.configureArgs, "configure-arg", "Extra argument passed to Setup configure (repeatable).")
	fs.Var(&o.registerArgs, "register-arg", "Extra argument passed to Setup register (repeatable).")
	fs.StringVar(&o.mirror, "mirror", "", "HTTP(S) mirror prefix tried before each unit's recorded source URL.")
	fs.StringVar(&o.cacheRemote, "cache-remote", "", "S3-compatible bucket name for plan cache and source mirroring.")
	fs.BoolVar(&o.dashboard, "dashboard", false, "Run the full-screen StatusBoard (Async strategy only).")
	fs.StringVar(&o.planIn, "plan-in", "", "Path to a previously captured plan blob.")
	fs.StringVar(&o.planCacheDig, "plan-cache", "", "BLAKE3 digest of a plan blob previously stored with 'weft plan' (alternative to -plan-in).")
	fs.StringVar(&o.planOut, "plan-out", "", "Path to write the computed plan blob.")
	fs.StringVar(&o.fetchDir, "fetch-dir", "", "Fetch directory root.")
	fs.StringVar(&o.installDir, "install-dir", "", "DestDir staging root.")
	fs.StringVar(&o.prefix, "prefix", "", "Absolute install prefix under installDir.")
	fs.BoolVar(&o.verbose, "v", false, "Verbose logging.")
	fs.BoolVar(&o.veryVerbose, "vv", false, "Debug-level logging.")
}

func applyVerbosity(o *buildOptions) {
	switch {
	case o.quiet:
		SetLogLevel(Silent)
	case o.debug, o.veryVerbose:
		SetLogLevel(DebugLevel)
	case o.verbose:
		SetLogLevel(Verbose)
	default:
		SetLogLevel(Normal)
	}
}

func mergeCfg(o *buildOptions, cfg *Config) {
	if o.mirror == "" {
		o.mirror = cfg.Mirror
	}
	if o.cacheRemote == "" {
		o.cacheRemote = cfg.CacheRemote
	}
	if o.fetchDir == "" {
		o.fetchDir = cfg.FetchDir
	}
	if o.installDir == "" {
		o.installDir = cfg.InstallDir
	}
	if o.prefix == "" {
		o.prefix = cfg.Prefix
	}
	if o.async && o.asyncN == 0 {
		o.asyncN = cfg.AsyncJobs
	}
}

// resolveStrategy maps parsed buildOptions onto an Executor's strategy
// fields.
func resolveStrategy(e *Executor, o *buildOptions) {
	switch {
	case o.scriptPath != "":
		e.Strategy = ScriptStrategy
		e.ScriptPath = o.scriptPath
	case o.async:
		e.Strategy = AsyncStrategy
		e.AsyncJobs = o.asyncN
	default:
		e.Strategy = TopoSortStrategy
	}
}

// loadOrRequirePlan resolves the plan source: a previously captured blob
// on disk (-plan-in), or one already stored in the PlanCache by a prior
// 'weft plan' run (-plan-cache <digest>, optionally falling back to the
// --cache-remote mirror). Deriving a plan from seed/freeze files is outside
// this engine's scope, so one of the two must be given.
func loadOrRequirePlan(ctx context.Context, o *buildOptions) (CabalPlan, error) {
	switch {
	case o.planCacheDig != "":
		cache := NewPlanCache()
		if o.cacheRemote != "" {
			mirror, err := NewS3Mirror(ctx, o.cacheRemote)
			if err != nil {
				return nil, err
			}
			cache.Remote = mirror
		}
		blob, err := cache.Get(ctx, o.planCacheDig)
		if err != nil {
			return nil, err
		}
		return DeserializePlan(blob)
	case o.planIn != "":
		return LoadPlanFile(o.planIn)
	default:
		return nil, fmt.Errorf("no plan source given: pass -plan-in <path> or -plan-cache <digest> (seed-file/project-file planning is outside this engine's scope)")
	}
}

func handlePlanCommand(ctx context.Context, args []string, cfg *Config) error {
	o := &buildOptions{}
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	addBuildFlags(fs, o)
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyVerbosity(o)
	mergeCfg(o, cfg)

	plan, err := loadOrRequirePlan(ctx, o)
	if err != nil {
		return err
	}

	cache := NewPlanCache()
	if o.cacheRemote != "" {
		mirror, err := NewS3Mirror(ctx, o.cacheRemote)
		if err != nil {
			return err
		}
		cache.Remote = mirror
	}
	blob, err := SerializePlan(plan)
	if err != nil {
		return err
	}
	dig, err := cache.Put(ctx, blob)
	if err != nil {
		return err
	}
	colArrow.Print("-> ")
	colSuccess.Printf("Plan cached as %s\n", dig)

	if o.planOut != "" {
		if err := SavePlanFile(o.planOut, plan); err != nil {
			return err
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Plan written to %s\n", o.planOut)
	}
	return nil
}

func handleFetchCommand(ctx context.Context, args []string, cfg *Config) error {
	o := &buildOptions{}
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	addBuildFlags(fs, o)
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyVerbosity(o)
	mergeCfg(o, cfg)

	if o.fetchDir == "" {
		return fmt.Errorf("fetch: -fetch-dir is required")
	}
	if err := resolveFetchDirLifecycle(o); err != nil {
		return err
	}

	plan, err := loadOrRequirePlan(ctx, o)
	if err != nil {
		return err
	}

	fetcher := NewFetcher(ctx, o.fetchDir)
	fetcher.Mirror = o.mirror
	fetcher.KeepTmp = o.keepTmp
	fetcher.Runner = UserExec
	if o.cacheRemote != "" {
		mirror, err := NewS3Mirror(ctx, o.cacheRemote)
		if err != nil {
			return err
		}
		fetcher.S3Mirror = mirror
	}

	sourceURLs, err := sourceURLsFromConfig(plan, cfg)
	if err != nil {
		return err
	}
	return fetcher.EnsureFetched(plan, sourceURLs)
}

func handleBuildCommand(ctx context.Context, args []string, cfg *Config) error {
	o := &buildOptions{}
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	addBuildFlags(fs, o)
	if err := fs.Parse(args); err != nil {
		return err
	}
	applyVerbosity(o)
	mergeCfg(o, cfg)

	if o.fetchDir == "" || o.installDir == "" || o.prefix == "" {
		return fmt.Errorf("build: -fetch-dir, -install-dir and -prefix are all required")
	}
	if !o.prefetched {
		if err := resolveFetchDirLifecycle(o); err != nil {
			return err
		}
	}

	plan, err := loadOrRequirePlan(ctx, o)
	if err != nil {
		return err
	}

	if !o.prefetched {
		fetcher := NewFetcher(ctx, o.fetchDir)
		fetcher.Mirror = o.mirror
		fetcher.KeepTmp = o.keepTmp
		fetcher.Runner = UserExec
		if o.cacheRemote != "" {
			mirror, err := NewS3Mirror(ctx, o.cacheRemote)
			if err != nil {
				return err
			}
			fetcher.S3Mirror = mirror
		}
		sourceURLs, err := sourceURLsFromConfig(plan, cfg)
		if err != nil {
			return err
		}
		if err := fetcher.EnsureFetched(plan, sourceURLs); err != nil {
			return err
		}
	}

	dest, err := NewDestDir(o.prefix, o.installDir)
	if err != nil {
		return err
	}

	e := NewExecutor(ctx)
	e.Runner = UserExec
	e.FetchDir = o.fetchDir
	e.Dest = dest
	e.ArgsFunc = argsFuncFromOptions(o)
	e.KeepTempDb = o.keepTmp
	resolveStrategy(e, o)

	// Under Async, a StatusBoard always tracks per-unit state: as a live
	// status line rewritten in place by default, or (--dashboard, and only
	// when stdout is a terminal) the full-screen tview table.
	if e.Strategy == AsyncStrategy {
		sorter := NewPlanSorter()
		sorted, err := sorter.Sort(plan)
		if err != nil {
			return err
		}
		tagger := NewSetupTagger()
		board := NewStatusBoard(tagger.Tag(sorted))
		e.Board = board

		if o.dashboard {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				colArrow.Print("-> ")
				cPrintf(colWarn, "stdout is not a terminal, ignoring --dashboard\n")
			} else {
				go board.Run()
				defer board.Stop()
			}
		} else {
			defer fmt.Println()
		}
	}

	return e.BuildPlan(plan)
}

// resolveFetchDirLifecycle enforces the --new/--update exclusivity implied
// by the CLI surface: --new requires the directory be absent (and creates
// it), --update (the default) requires it to already exist.
func resolveFetchDirLifecycle(o *buildOptions) error {
	_, err := os.Stat(o.fetchDir)
	exists := err == nil
	if o.newFetchDir && exists {
		return &FetchDirExists{Dir: o.fetchDir}
	}
	if !o.newFetchDir && !exists {
		return &FetchDirMissing{Dir: o.fetchDir}
	}
	return os.MkdirAll(o.fetchDir, 0o755)
}

// sourceURLsFromConfig resolves each Remote unit's source URL from the
// config file's WEFT_SRCURL_<pkgname> entries. A unit lacking one can still
// be fetched by the native tool's unpack; if that fails too, fetch fails
// with IOFailure (surfaced by Fetcher.EnsureFetched), since resolving
// source URLs from a package index is outside this engine's scope.
func sourceURLsFromConfig(plan CabalPlan, cfg *Config) (map[UnitId]string, error) {
	urls := make(map[UnitId]string)
	for _, u := range plan {
		cu, ok := u.Configured()
		if !ok || cu.PuPkgSrc.Local {
			continue
		}
		key := "WEFT_SRCURL_" + strings.ToUpper(string(cu.PuPkgName))
		if url := cfg.Values[key]; url != "" {
			urls[cu.PuId] = url
		}
	}
	return urls, nil
}

// argsFuncFromOptions applies the CLI's repeatable --configure-arg and
// --register-arg lists uniformly to every unit.
func argsFuncFromOptions(o *buildOptions) UnitArgsFunc {
	return UnitArgsFuncOf(func(ConfiguredUnit) UnitArgs {
		return UnitArgs{
			ConfigureArgs: append([]string{}, o.configureArgs...),
			RegisterArgs:  append([]string{}, o.registerArgs...),
		}
	})
}

// Main is the CLI entrypoint for cmd/weft.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigs:
			colArrow.Print("\n-> ")
			color.Danger.Printf("Received %v. Cancelling build\n", sig)
			cancel()

			select {
			case <-sigs:
				colArrow.Print("\n-> ")
				color.Danger.Printf("Second interrupt received. Forcing immediate exit.")
				os.Exit(130)
			case <-time.After(2 * time.Second):
				colArrow.Print("\n-> ")
				color.Danger.Printf("Graceful shutdown timeout. Exiting.")
				os.Exit(0)
			}
		case <-ctx.Done():
		}
	}()

	if ctx.Err() != nil {
		return
	}

	if len(os.Args) < 2 {
		printHelp()
		return
	}

	configPath := ConfigFile
	if root := os.Getenv("WEFT_ROOT"); root != "" {
		configPath = filepath.Join(root, "etc", "weft.conf")
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	initConfig(cfg)

	UserExec = NewProcessRunner(ctx)

	var exitCode int
	switch os.Args[1] {
	case "plan":
		if err := handlePlanCommand(ctx, os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "plan failed: %v\n", err)
			exitCode = 1
		}
	case "fetch":
		if err := handleFetchCommand(ctx, os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "fetch failed: %v\n", err)
			exitCode = 1
		}
	case "build":
		if err := handleBuildCommand(ctx, os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
			exitCode = 1
		}
	case "clean":
		if err := handleCleanCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintf(os.Stderr, "clean failed: %v\n", err)
			exitCode = 1
		}
	case "version", "--version":
		colNote.Printf("weft %s (%s) built %s\n", version, arch, buildDate)
	default:
		printHelp()
		exitCode = 1
	}
	os.Exit(exitCode)
}
