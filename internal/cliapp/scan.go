package cliapp

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	coreerrors "prtip/internal/core/errors"
	"prtip/internal/core/model"
	"prtip/internal/eventbus"
	"prtip/internal/output"
	"prtip/internal/progress"
	"prtip/internal/scheduler"
)

func newScanCmd() *cobra.Command {
	opts := &ScanOptions{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan one or more targets for open ports, services, and OS",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&opts.Targets, "target", "t", nil, "target IP, CIDR, or range (repeatable)")
	flags.StringVarP(&opts.Ports, "ports", "p", "", "port spec, e.g. 1-1000,8080 (default: top-1000)")
	flags.BoolVarP(&opts.Fast, "fast", "F", false, "fast mode: scan the top-100 ports")
	flags.StringVar(&opts.Variant, "variant", "", "scan variant: sT,sS,sU,sF,sN,sX,sA,sI (default: sS if --privileged else sT)")
	flags.IntVarP(&opts.Timing, "timing", "T", 3, "timing template 0 (paranoid) .. 5 (insane)")
	flags.IntVar(&opts.MinHostgroup, "min-hostgroup", 0, "minimum hostgroup size")
	flags.IntVar(&opts.MaxHostgroup, "max-hostgroup", 0, "maximum hostgroup size")
	flags.IntVar(&opts.MaxParallelism, "max-parallelism", 0, "max in-flight probes per hostgroup")
	flags.BoolVar(&opts.AdaptiveRate, "adaptive-rate", false, "enable the adaptive rate controller")
	flags.IntVar(&opts.TargetPPS, "rate", 0, "target packets per second (0: unbounded)")
	flags.BoolVarP(&opts.Fragment, "fragment", "f", false, "fragment outgoing packets")
	flags.IntVar(&opts.MTU, "mtu", 0, "fragmentation MTU (0 -> 28-byte default)")
	flags.StringVarP(&opts.Decoys, "decoys", "D", "", "comma-separated decoy addresses (ME is accepted and ignored; the real source's position is random)")
	flags.BoolVar(&opts.BadChecksum, "badsum", false, "send deliberately invalid checksums")
	flags.IntVar(&opts.TTL, "ttl", 0, "IP TTL (0: OS default)")
	flags.IntVarP(&opts.SourcePort, "source-port", "g", 0, "source port (0: random)")
	flags.StringVar(&opts.Zombie, "zombie", "", "zombie host IP for idle/zombie scan (-sI)")
	flags.BoolVarP(&opts.IPv6, "ipv6", "6", false, "IPv6 only")
	flags.BoolVarP(&opts.IPv4, "ipv4", "4", false, "IPv4 only")
	flags.BoolVar(&opts.DualStack, "dual-stack", false, "scan both address families")
	flags.BoolVarP(&opts.ServiceDetect, "service-detect", "s", false, "enable service/version detection")
	flags.IntVar(&opts.VersionIntensity, "version-intensity", 7, "service probe intensity 0-9")
	flags.BoolVarP(&opts.OSDetect, "os-detect", "O", false, "enable OS fingerprinting")
	flags.BoolVar(&opts.Privileged, "privileged", false, "allow raw-socket scan variants")
	flags.Int64Var(&opts.Seed, "seed", 0, "PRNG seed for port shuffling (0: random)")
	flags.StringVar(&opts.OutputJSON, "oJ", "", "write JSON results to this file")
	flags.StringVar(&opts.OutputXML, "oX", "", "write Nmap-compatible XML results to this file")
	flags.StringVar(&opts.OutputGreppable, "oG", "", "write greppable results to this file")
	flags.StringVar(&opts.EventLog, "event-log", "", "append a newline-delimited JSON event log to this file")

	return cmd
}

func runScan(cmd *cobra.Command, opts *ScanOptions) error {
	if err := opts.Validate(); err != nil {
		return coreerrors.Wrap(coreerrors.KindConfig, "invalid scan options", err)
	}
	cfg, err := opts.ToConfig()
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindConfig, "failed to build scan configuration", err)
	}
	if err := scheduler.ValidateHostgroupBounds(cfg.MinHostgroup, cfg.MaxHostgroup); err != nil {
		return err
	}

	scanID := uuid.New()
	sched := scheduler.New(scanID, cfg, scheduler.Option{
		ConnectTimeout: opts.ConnectTimeout(),
		DetectServices: opts.ServiceDetect,
		VersionIntensity: opts.VersionIntensity,
		FingerprintOS:  opts.OSDetect,
	})

	agg := progress.New(sched.Bus())
	defer agg.Close()

	var eventLogFile *os.File
	if opts.EventLog != "" {
		eventLogFile, err = os.OpenFile(opts.EventLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return coreerrors.Wrap(coreerrors.KindStorage, "failed to open event log", err)
		}
		defer eventLogFile.Close()
		writer := output.NewEventLogWriter(eventLogFile)
		sub := sched.Bus().Subscribe(eventbus.Filter{Kind: eventbus.FilterAll})
		go func() {
			for e := range sub.Events() {
				_ = writer.WriteEvent(e)
			}
		}()
		defer sub.Unsubscribe()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			pterm.Warning.Println("scan interrupted, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	runErr := make(chan error, 1)
	go func() { runErr <- sched.Run(ctx) }()

	pterm.Info.Printfln("scanning %d target(s), %d port(s)...", len(cfg.Targets), cfg.Ports.Len())

	var results []*model.ScanResult
	counts := make(map[model.PortState]int)
	for res := range sched.Results() {
		r := res
		results = append(results, &r)
		counts[r.State]++
	}

	if err := <-runErr; err != nil {
		return coreerrors.Wrap(coreerrors.KindNetwork, "scan run failed", err)
	}

	summary := model.ScanSummary{
		TargetsScanned: len(cfg.Targets),
		PortsScanned:   cfg.Ports.Len(),
		Elapsed:        time.Since(start),
		Counts:         counts,
	}

	if err := writeAllOutputs(opts, results, summary); err != nil {
		return err
	}
	return output.Write(os.Stdout, output.FormatText, results, summary)
}

func writeAllOutputs(opts *ScanOptions, results []*model.ScanResult, summary model.ScanSummary) error {
	type target struct {
		path   string
		format output.Format
	}
	for _, t := range []target{
		{opts.OutputJSON, output.FormatJSON},
		{opts.OutputXML, output.FormatXML},
		{opts.OutputGreppable, output.FormatGreppable},
	} {
		if t.path == "" {
			continue
		}
		f, err := os.Create(t.path)
		if err != nil {
			return coreerrors.WithTarget(coreerrors.KindStorage, "failed to create output file", t.path, err)
		}
		err = output.Write(f, t.format, results, summary)
		f.Close()
		if err != nil {
			return coreerrors.WithTarget(coreerrors.KindSerialization, "failed to write output", t.path, err)
		}
	}
	return nil
}
