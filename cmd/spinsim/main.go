package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/solmag/spinchain/internal/config"
	"github.com/solmag/spinchain/internal/integrate"
	"github.com/solmag/spinchain/internal/llg"
	"github.com/solmag/spinchain/internal/mobility"
	"github.com/solmag/spinchain/internal/phase"
	"github.com/solmag/spinchain/internal/relax"
	"github.com/solmag/spinchain/internal/spin"
	"github.com/solmag/spinchain/internal/storage"
	"github.com/solmag/spinchain/internal/track"
)

var (
	dataDir    string
	resultsDB  string
	configFile string
	preset     string

	// physics overrides
	nSites int
	jEx    float64
	dmi    float64
	anis   float64
	alpha  float64
	hz     float64
	seed   int64

	duration float64
	workers  int
	sweepID  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "spinsim",
		Short: "LLG spin-chain dynamics and soliton mobility lab",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".spinsim", "run archive directory")
	rootCmd.PersistentFlags().StringVar(&resultsDB, "results", "", "sqlite results database (default <data>/results.db)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "named preset configuration")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "integrate one LLG run and archive the trajectory",
		RunE:  runSimulation,
	}
	addPhysicsFlags(runCmd)
	runCmd.Flags().Float64Var(&duration, "time", 0, "integration span (defaults to config)")

	relaxCmd := &cobra.Command{
		Use:   "relax",
		Short: "relax a random configuration to its ground state",
		RunE:  runRelax,
	}
	addPhysicsFlags(relaxCmd)

	phaseCmd := &cobra.Command{
		Use:   "phasemap",
		Short: "map the (D, Da) phase diagram",
		RunE:  runPhaseMap,
	}
	phaseCmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (0 = num CPUs)")
	phaseCmd.Flags().StringVar(&sweepID, "sweep-id", "", "sweep id for the results store")

	mobilityCmd := &cobra.Command{
		Use:   "mobility",
		Short: "scan alpha x hz and extract the mobility curve",
		RunE:  runMobility,
	}
	mobilityCmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (0 = num CPUs)")
	mobilityCmd.Flags().StringVar(&sweepID, "sweep-id", "", "sweep id for the results store")

	trackCmd := &cobra.Command{
		Use:   "track [run_id]",
		Short: "track the soliton in an archived run and fit its velocity",
		Args:  cobra.ExactArgs(1),
		RunE:  trackRun,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list archived runs",
		RunE:  listRuns,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list named presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := config.ListPresets()
			sort.Strings(names)
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, relaxCmd, phaseCmd, mobilityCmd, trackCmd, listCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func addPhysicsFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&nSites, "n", 0, "lattice sites (defaults to config)")
	cmd.Flags().Float64Var(&jEx, "j", 0, "exchange constant (defaults to config)")
	cmd.Flags().Float64Var(&dmi, "d", 0, "DMI constant (defaults to config)")
	cmd.Flags().Float64Var(&anis, "da", 0, "anisotropy constant (defaults to config)")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "Gilbert damping (defaults to config)")
	cmd.Flags().Float64Var(&hz, "hz", 0, "static field along z (defaults to config)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (defaults to config)")
}

// applyOverrides copies explicitly set flags onto cfg. A flag the user
// did not pass never touches the config, so zero is a legal override
// value.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("n") {
		cfg.Lattice.N = nSites
		if cfg.Pulse.Center >= nSites {
			cfg.Pulse.Center = nSites / 2
		}
	}
	if f.Changed("j") {
		cfg.Physics.J = jEx
	}
	if f.Changed("d") {
		cfg.Physics.D = dmi
	}
	if f.Changed("da") {
		cfg.Physics.Da = anis
	}
	if f.Changed("alpha") {
		cfg.Physics.Alpha = alpha
	}
	if f.Changed("hz") {
		cfg.Physics.Hz = hz
	}
	if f.Changed("seed") {
		cfg.Lattice.Seed = seed
	}
	if f.Changed("time") {
		cfg.Integration.Duration = duration
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", preset)
		}
	default:
		cfg = config.DefaultConfig()
	}

	applyOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func initialState(cfg *config.Config) spin.State {
	switch cfg.Lattice.Initial {
	case "spiral":
		return spin.Spiral(cfg.Lattice.N, cfg.Lattice.Turns)
	case "random":
		rng := rand.New(rand.NewSource(cfg.Lattice.Seed))
		return spin.Random(cfg.Lattice.N, rng)
	default:
		return spin.Ferromagnetic(cfg.Lattice.N)
	}
}

func openResults() (*storage.Results, error) {
	path := resultsDB
	if path == "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, err
		}
		path = dataDir + "/results.db"
	}
	return storage.OpenResults(path)
}

func newSweepID(kind string) string {
	if sweepID != "" {
		return sweepID
	}
	return fmt.Sprintf("%s_%s_%s", kind, time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	params := cfg.Params()
	var sys *llg.System
	if pulse, ok := cfg.PulseParams(); ok {
		sys, err = llg.New(params, pulse.Drive(params.N))
	} else {
		sys, err = llg.New(params, nil)
	}
	if err != nil {
		return err
	}

	fmt.Printf("integrating N=%d, D=%.3f, Da=%.3f, alpha=%.3f, hz=%.4f over T=%.1f\n",
		params.N, params.D, params.Da, params.Alpha, params.Hz, cfg.Integration.Duration)

	start := time.Now()
	tr, runErr := integrate.NewSimulator(sys).Run(ctx, initialState(cfg), cfg.IntegrateConfig())
	elapsed := time.Since(start)

	if runErr != nil && tr == nil {
		return runErr
	}

	store := storage.New(dataDir)
	if err := store.Init(); err != nil {
		return err
	}
	runID, err := store.SaveRun(tr, runErr)
	if err != nil {
		return err
	}

	fmt.Printf("archived %d samples as %s (%.1fs)\n", tr.Len(), runID, elapsed.Seconds())
	if runErr != nil {
		fmt.Printf("run flagged: %v\n", runErr)
	}

	printCoreSketch(tr, cfg.TrackConfig())
	return nil
}

func runRelax(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	rng := rand.New(rand.NewSource(cfg.Lattice.Seed))
	s0 := spin.Random(cfg.Lattice.N, rng)

	res, err := relax.Run(ctx, s0, cfg.Params(), cfg.RelaxConfig())
	if err != nil && !errors.Is(err, spin.ErrNonConvergence) {
		return err
	}

	label := phase.Classify(res.State, phase.DefaultThresholds())
	fmt.Printf("relaxed in %d iterations, E=%.6f, phase=%s\n", res.Iterations, res.Energy, label)
	if err != nil {
		fmt.Printf("flagged: %v\n", err)
	}
	return nil
}

func runPhaseMap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(cfg.Sweep.DValues) == 0 || len(cfg.Sweep.DaValues) == 0 {
		cfg.Sweep.DValues = config.Linspace(0.1, 1.0, 20)
		cfg.Sweep.DaValues = config.Linspace(0.0, -0.5, 20)
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("mapping %d x %d grid points on %d sites\n",
		len(cfg.Sweep.DValues), len(cfg.Sweep.DaValues), cfg.Lattice.N)

	m, err := phase.MapGrid(ctx, phase.GridConfig{
		N:          cfg.Lattice.N,
		J:          cfg.Physics.J,
		Gamma:      cfg.Physics.Gamma,
		DValues:    cfg.Sweep.DValues,
		DaValues:   cfg.Sweep.DaValues,
		Seed:       cfg.Lattice.Seed,
		Workers:    workers,
		Relax:      cfg.RelaxConfig(),
		Thresholds: phase.DefaultThresholds(),
	})
	if err != nil {
		return err
	}

	counts := map[phase.Label]int{}
	for _, row := range m.Points {
		for _, pt := range row {
			counts[pt.Label]++
		}
	}
	for label, n := range counts {
		fmt.Printf("  %-16s %d\n", label, n)
	}
	if failures := m.Failures(); len(failures) > 0 {
		fmt.Printf("  %d points did not converge (kept, flagged)\n", len(failures))
	}

	results, err := openResults()
	if err != nil {
		return err
	}
	defer results.Close()

	id := newSweepID("phase")
	if err := results.SavePhaseMap(ctx, id, m); err != nil {
		return err
	}
	fmt.Printf("saved phase map as sweep %s\n", id)
	return nil
}

func runMobility(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pulse, ok := cfg.PulseParams()
	if !ok {
		return fmt.Errorf("mobility scan needs the nucleation pulse enabled")
	}

	ctx, stop := signalContext()
	defer stop()

	base := cfg.Params()
	fmt.Printf("scanning %d alphas x %d fields (%d runs)\n",
		len(cfg.Sweep.Alphas), len(cfg.Sweep.Fields), len(cfg.Sweep.Alphas)*len(cfg.Sweep.Fields))

	res, err := mobility.Sweep(ctx, mobility.SweepConfig{
		Base:      base,
		Alphas:    cfg.Sweep.Alphas,
		Fields:    cfg.Sweep.Fields,
		Pulse:     pulse,
		Integrate: cfg.IntegrateConfig(),
		Track:     cfg.TrackConfig(),
		Workers:   workers,
	})
	if err != nil {
		return err
	}

	for _, f := range res.Failures {
		fmt.Printf("  alpha=%.3f hz=%+.4f failed: %v\n", f.Alpha, f.Hz, f.Err)
	}
	for _, f := range res.Insufficient {
		fmt.Printf("  alpha=%.3f: %v\n", f.Alpha, f.Err)
	}

	if len(res.Curve.Points) > 0 {
		mu := make([]float64, len(res.Curve.Points))
		for i, p := range res.Curve.Points {
			mu[i] = p.Mobility
		}
		fmt.Println(asciigraph.Plot(mu, asciigraph.Height(10), asciigraph.Caption("mobility vs alpha (ascending)")))
		for _, i := range res.Curve.SignChanges {
			fmt.Printf("mobility changes sign between alpha=%.3f and alpha=%.3f\n",
				res.Curve.Points[i-1].Alpha, res.Curve.Points[i].Alpha)
		}
	}

	results, err := openResults()
	if err != nil {
		return err
	}
	defer results.Close()

	id := newSweepID("mobility")
	if err := results.SaveVelocities(ctx, id, res.Measurements); err != nil {
		return err
	}
	if err := results.SaveMobility(ctx, id, res.Points); err != nil {
		return err
	}
	fmt.Printf("saved %d velocities, %d mobility points as sweep %s\n",
		len(res.Measurements), len(res.Points), id)
	return nil
}

func trackRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store := storage.New(dataDir)
	tr, meta, err := store.LoadRun(args[0])
	if err != nil {
		return err
	}
	if meta.Failed {
		fmt.Printf("note: run was flagged (%s); fitting the retained partial trajectory\n", meta.Error)
	}

	m, err := track.FitVelocity(tr, cfg.TrackConfig())
	if err != nil {
		return err
	}
	fmt.Printf("velocity = %.4f +/- %.4f sites/time over [%g, %g] (%d samples, alpha=%.3f, hz=%+.4f)\n",
		m.Velocity, m.Stderr, m.TStart, m.TEnd, m.Samples, m.Alpha, m.Hz)

	printCoreSketch(tr, cfg.TrackConfig())
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	runs, err := store.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tN\tALPHA\tHZ\tSAMPLES\tSTATUS")
	for _, r := range runs {
		status := "ok"
		if r.Failed {
			status = "flagged"
		}
		fmt.Fprintf(w, "%s\t%d\t%.3f\t%+.4f\t%d\t%s\n",
			r.ID, r.Params.N, r.Params.Alpha, r.Params.Hz, r.Samples, status)
	}
	return w.Flush()
}

// printCoreSketch draws the tracked core position over the whole
// trajectory when a core exists; analysis-grade fits use the track
// command's window instead.
func printCoreSketch(tr *integrate.Trajectory, tc track.Config) {
	var positions []float64
	for _, s := range tr.States {
		pos, ok := track.CorePosition(s, tc.CoreThreshold)
		if !ok {
			continue
		}
		positions = append(positions, pos)
	}
	if len(positions) < 2 {
		fmt.Println("no soliton core detected")
		return
	}
	fmt.Println(asciigraph.Plot(positions, asciigraph.Height(10), asciigraph.Caption("soliton core position (site)")))
}
