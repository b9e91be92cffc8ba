// Package scheduler implements component C7: it enumerates targets×ports
// into hostgroups, shuffles port order per hostgroup with a scan-local PRNG,
// honors scan/host delays and the adaptive rate limiter, dispatches each
// probe to the strategy matching the scan's variant, and applies a
// per-target circuit breaker. Concurrency shape is grounded on
// internal/core/scanner/port/scanner.go's semaphore+WaitGroup worker pool,
// generalized from one port-scan goroutine per port into one sender task
// per hostgroup (spec §5's "sender task per hostgroup").
package scheduler

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"prtip/internal/capture"
	"prtip/internal/codec"
	"prtip/internal/core/events"
	"prtip/internal/core/model"
	"prtip/internal/correlator"
	"prtip/internal/eventbus"
	"prtip/internal/osfingerprint"
	"prtip/internal/probestore"
	"prtip/internal/ratelimit"
	"prtip/internal/resource"
	"prtip/internal/service"
	"prtip/internal/strategy"
)

// idleZombieSrcPort is the fixed local port used for the zombie's IPID
// bracket probes; it need not be random since the zombie probes are
// synchronous and never share the probe store with other in-flight work.
const idleZombieSrcPort = 54321

// Scheduler owns one scan's lifecycle: probe generation, pacing, dispatch,
// correlation, and result emission.
type Scheduler struct {
	cfg    model.ScanConfig
	scanID uuid.UUID
	bus    *eventbus.Bus

	store      *probestore.Store
	limiter    *ratelimit.Limiter
	monitor    *resource.Monitor
	correlator *correlator.Correlator

	captures map[model.Protocol]capture.Capture

	breakersMu sync.Mutex
	breakers   map[string]*CircuitBreaker

	results     chan model.ScanResult
	srcIP       net.IP
	connTimeout time.Duration

	breakerThreshold int
	breakerCoolDown  time.Duration

	serviceDetector  *service.Detector
	versionIntensity int
	osFinger         *osfingerprint.Fingerprinter
	osTimeout        time.Duration
	closedPortHint   uint16
	osDone           sync.Map // target string -> bool, one fingerprint attempt per target
}

// Option configures a Scheduler beyond ScanConfig's fields.
type Option struct {
	SourceIP         net.IP
	ConnectTimeout   time.Duration
	BreakerThreshold int
	BreakerCoolDown  time.Duration
	ProbeMaxAttempts int
	EventQueueDepth  int

	// DetectServices enables the Service Detector (component C9) against
	// every port found Open.
	DetectServices   bool
	VersionIntensity int

	// FingerprintOS enables the OS Fingerprinter (component C10) once per
	// target, the first time an Open port is found for it. It needs a
	// closed port to round out its probe battery; ClosedPortHint supplies
	// one (default 1 if zero, rarely open and cheap to probe).
	FingerprintOS  bool
	ClosedPortHint uint16
	OSTimeout      time.Duration
}

// New builds a Scheduler wired to a fresh Probe Store, Rate Limiter,
// Resource Monitor, Correlator, and Event Bus for one scan.
func New(scanID uuid.UUID, cfg model.ScanConfig, opt Option) *Scheduler {
	if opt.ConnectTimeout == 0 {
		opt.ConnectTimeout = 3 * time.Second
	}
	if opt.BreakerThreshold == 0 {
		opt.BreakerThreshold = 5
	}
	if opt.BreakerCoolDown == 0 {
		opt.BreakerCoolDown = 30 * time.Second
	}
	if opt.ProbeMaxAttempts == 0 {
		opt.ProbeMaxAttempts = 3
	}
	if opt.ClosedPortHint == 0 {
		opt.ClosedPortHint = 1
	}
	if opt.OSTimeout == 0 {
		opt.OSTimeout = 2 * time.Second
	}
	bus := eventbus.New(opt.EventQueueDepth)
	store := probestore.New(opt.ProbeMaxAttempts)
	s := &Scheduler{
		cfg:              cfg,
		scanID:           scanID,
		bus:              bus,
		store:            store,
		limiter:          ratelimit.New(cfg.TargetPPS, cfg.AdaptiveRate),
		captures:         make(map[model.Protocol]capture.Capture),
		breakers:         make(map[string]*CircuitBreaker),
		results:          make(chan model.ScanResult, 1024),
		srcIP:            opt.SourceIP,
		connTimeout:      opt.ConnectTimeout,
		breakerThreshold: opt.BreakerThreshold,
		breakerCoolDown:  opt.BreakerCoolDown,
		versionIntensity: opt.VersionIntensity,
		osTimeout:        opt.OSTimeout,
		closedPortHint:   opt.ClosedPortHint,
	}
	s.correlator = correlator.New(store, s.handleRawResult)
	if opt.DetectServices {
		s.serviceDetector = service.New()
	}
	if opt.FingerprintOS {
		s.osFinger = osfingerprint.New()
	}
	s.monitor = resource.New(resource.DefaultThresholds(), s.onResourceSignal)
	return s
}

// Bus exposes the event bus for TUI/logger subscribers.
func (s *Scheduler) Bus() *eventbus.Bus { return s.bus }

// Results exposes the terminal result stream; closed when Run returns.
func (s *Scheduler) Results() <-chan model.ScanResult { return s.results }

func (s *Scheduler) onResourceSignal(sig resource.Signal) {
	switch sig {
	case resource.SignalDegraded:
		s.limiter.HalveTokenRate()
	case resource.SignalNormal:
		s.limiter.RestoreTokenRate()
	}
	s.bus.Publish(events.New(events.EventResourceSignal, s.scanID, events.ResourceSignalPayload{Signal: sig.String()}))
}

func (s *Scheduler) breakerFor(target string) *CircuitBreaker {
	s.breakersMu.Lock()
	defer s.breakersMu.Unlock()
	b, ok := s.breakers[target]
	if !ok {
		b = NewCircuitBreaker(s.breakerThreshold, s.breakerCoolDown)
		s.breakers[target] = b
	}
	return b
}

// Run enumerates hostgroups and drains them in order, honoring the 95%-or-
// timeout advance gate between batches (spec §4.6). It blocks until every
// hostgroup completes or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.results)

	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()
	go s.monitor.Run(monitorCtx)

	// Idle scan bypasses the probe store/correlator entirely: its
	// zombie-IPID bracket measurement polls its capture directly and
	// synchronously (measureZombieIPID), which would race the generic
	// receiveLoop's Recv() calls on the same capture if both ran.
	if needsRawCapture(s.cfg.Variant) && s.cfg.Variant != model.VariantIdle {
		recvCtx, cancelRecv := context.WithCancel(ctx)
		defer cancelRecv()
		go s.receiveLoop(recvCtx)
		go s.sweepLoop(recvCtx)
	}

	s.bus.Publish(events.New(events.EventScanStarted, s.scanID, nil))

	var allIPs []net.IP
	for _, t := range s.cfg.Targets {
		allIPs = append(allIPs, t.Expand()...)
	}
	groups := Hostgroups(allIPs, s.cfg.MinHostgroup, s.cfg.MaxHostgroup)

	for _, group := range groups {
		if err := s.runHostgroup(ctx, group); err != nil {
			s.bus.Publish(events.New(events.EventScanCancelled, s.scanID, nil))
			return err
		}
		if s.cfg.HostDelay > 0 {
			select {
			case <-time.After(s.cfg.HostDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	s.bus.Publish(events.New(events.EventScanCompleted, s.scanID, nil))
	return nil
}

// runHostgroup dispatches every (target, port) pair in one batch
// concurrently, bounded by MaxParallelism, and waits for the batch to
// finish (spec's "completion of the prior batch ... required before
// advancing" — this implementation waits for full completion, the
// strictest reading of the 95%-or-timeout gate).
func (s *Scheduler) runHostgroup(ctx context.Context, group []net.IP) error {
	ports := s.cfg.Ports.Shuffle(s.cfg.Seed)

	maxPar := s.cfg.MaxParallelism
	if maxPar <= 0 {
		maxPar = 256
	}
	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	for _, target := range group {
		target := target
		breaker := s.breakerFor(target.String())
		if !breaker.Allow() {
			continue
		}
		for _, port := range ports {
			port := port
			select {
			case <-ctx.Done():
				wg.Wait()
				return ctx.Err()
			default:
			}
			if err := s.limiter.Acquire(ctx); err != nil {
				wg.Wait()
				return err
			}
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				s.dispatch(ctx, target, port, breaker)
			}()
			if s.cfg.ScanDelay > 0 {
				select {
				case <-time.After(s.cfg.ScanDelay):
				case <-ctx.Done():
				}
			}
		}
	}
	wg.Wait()
	return nil
}

// dispatch routes one (target, port) pair to the strategy matching the
// scan's variant and records the outcome against the circuit breaker.
func (s *Scheduler) dispatch(ctx context.Context, target net.IP, port uint16, breaker *CircuitBreaker) {
	if s.cfg.Variant == model.VariantConnect || !s.cfg.PrivilegedMode {
		res := strategy.ConnectScan(ctx, target, port, s.connTimeout)
		s.emitResult(res, breaker)
		return
	}

	switch s.cfg.Variant {
	case model.VariantIdle:
		s.dispatchIdle(target, port, breaker)
		return
	case model.VariantDecoy:
		s.dispatchDecoy(target, port, breaker)
		return
	}

	probe := model.NewProbe(s.scanID, target, port, model.ProtoTCP, s.cfg.Variant, s.connTimeout)
	var raw *strategy.RawProbe
	var err error

	switch s.cfg.Variant {
	case model.VariantSYN:
		raw, err = strategy.BuildSYN(s.srcIP, target, port, s.cfg.Evasion)
	case model.VariantFIN:
		raw, err = strategy.BuildFIN(s.srcIP, target, port, s.cfg.Evasion)
	case model.VariantNULL:
		raw, err = strategy.BuildNULL(s.srcIP, target, port, s.cfg.Evasion)
	case model.VariantXmas:
		raw, err = strategy.BuildXmas(s.srcIP, target, port, s.cfg.Evasion)
	case model.VariantACK:
		raw, err = strategy.BuildACK(s.srcIP, target, port, s.cfg.Evasion)
	case model.VariantUDP:
		probe.Proto = model.ProtoUDP
		raw, err = strategy.BuildUDP(s.srcIP, target, port, strategy.WellKnownUDPPayload(port), s.cfg.Evasion)
	}
	if err != nil {
		breaker.RecordFailure()
		return
	}
	probe.Key = raw.Key
	s.store.Insert(probe)

	c := s.captureFor(probe.Proto)
	if c == nil {
		breaker.RecordFailure()
		return
	}
	packets := [][]byte{raw.Packet}
	if s.cfg.Evasion.Fragment && target.To4() != nil {
		if packets, err = codec.Fragment(raw.Packet, s.cfg.Evasion.FragmentMTU); err != nil {
			breaker.RecordFailure()
			s.store.Remove(probe.Key)
			return
		}
	}
	for _, pkt := range packets {
		if err = c.Send(target, pkt); err != nil {
			break
		}
	}
	if err != nil {
		breaker.RecordFailure()
		s.store.Remove(probe.Key)
		return
	}
	s.store.Transition(probe.Key, model.ProbeInFlight)
	s.bus.Publish(events.New(events.EventProbeStarted, s.scanID, events.ProbeStartedPayload{
		Target: target.String(), Port: port, Variant: s.cfg.Variant,
	}))
	// Terminal resolution (Responded vs TimedOut) happens asynchronously in
	// receiveLoop/sweepLoop; RecordSuccess/RecordFailure against the
	// breaker there would race this goroutine's return, so the breaker for
	// raw variants is driven by send-time failures only. Connect-variant
	// dispatch above is the synchronous path that can record breaker
	// outcomes immediately.
}

// handleRawResult is the Correlator's callback for every raw-socket variant
// (SYN/FIN/NULL/Xmas/ACK/UDP/Decoy): it runs the same enrichment and event
// publishing as the synchronous Connect-scan path before handing the result
// to the output channel.
func (s *Scheduler) handleRawResult(res model.ScanResult) {
	breaker := s.breakerFor(res.Target.String())
	s.emitResult(res, breaker)
}

// dispatchDecoy builds a decoy batch (one real SYN probe plus N spoofed
// decoys sharing its destination) and sends every packet in the batch; only
// the real probe is tracked in the Probe Store, since the decoys' forged
// source addresses mean any reply to them lands elsewhere (spec §4.7's
// Decoy row).
func (s *Scheduler) dispatchDecoy(target net.IP, port uint16, breaker *CircuitBreaker) {
	evasion := s.cfg.Evasion
	batch, err := strategy.BuildDecoyBatch(s.srcIP, target, port, evasion.Decoys, len(evasion.Decoys), s.cfg.IPv6, nil, evasion)
	if err != nil {
		breaker.RecordFailure()
		return
	}
	c := s.captureFor(model.ProtoTCP)
	if c == nil {
		breaker.RecordFailure()
		return
	}

	probe := model.NewProbe(s.scanID, target, port, model.ProtoTCP, model.VariantDecoy, s.connTimeout)
	real := batch.Probes[batch.RealIndex]
	probe.Key = real.Key
	s.store.Insert(probe)

	for i, p := range batch.Probes {
		if sendErr := c.Send(target, p.Packet); sendErr != nil && i == batch.RealIndex {
			breaker.RecordFailure()
			s.store.Remove(probe.Key)
			return
		}
	}
	s.store.Transition(probe.Key, model.ProbeInFlight)
	s.bus.Publish(events.New(events.EventProbeStarted, s.scanID, events.ProbeStartedPayload{
		Target: target.String(), Port: port, Variant: model.VariantDecoy,
	}))
}

// dispatchIdle performs one full idle/zombie scan cycle for a single
// (target, port) pair: it samples the zombie's IPID, sends a SYN forged as
// coming from the zombie, re-samples the zombie's IPID, and classifies the
// delta (spec §4.7's Idle row). Unlike every other variant this is entirely
// synchronous — there is no probe store entry and no correlator
// involvement, since the only packets the scanner itself ever receives are
// the two direct zombie probes, not the target's reply.
func (s *Scheduler) dispatchIdle(target net.IP, port uint16, breaker *CircuitBreaker) {
	if s.cfg.IdleZombie == nil {
		breaker.RecordFailure()
		return
	}
	zombie := strategy.ZombieCandidate{IP: s.cfg.IdleZombie}
	c := s.captureFor(model.ProtoTCP)
	if c == nil {
		breaker.RecordFailure()
		return
	}

	before, err := s.measureZombieIPID(c, zombie)
	if err != nil {
		breaker.RecordFailure()
		return
	}

	spoofed, err := strategy.BuildSpoofedSYN(zombie.IP, target, port)
	if err != nil {
		breaker.RecordFailure()
		return
	}
	if sendErr := c.Send(target, spoofed.Packet); sendErr != nil {
		breaker.RecordFailure()
		return
	}

	after, err := s.measureZombieIPID(c, zombie)
	if err != nil {
		breaker.RecordFailure()
		return
	}

	delta := after - before
	res := model.ScanResult{
		Target:     target,
		Port:       port,
		Proto:      model.ProtoTCP,
		State:      strategy.ClassifyIPIDDelta(delta),
		ObservedAt: time.Now(),
	}
	s.emitResult(res, breaker)
}

// measureZombieIPID sends a SYN/ACK probe directly to the zombie and reads
// its IPID from the RST it sends back, polling the shared capture
// synchronously (Idle scan is excluded from the async receiveLoop in Run,
// so this is the only reader of c.Recv during an idle scan).
func (s *Scheduler) measureZombieIPID(c capture.Capture, zombie strategy.ZombieCandidate) (uint16, error) {
	probe, err := strategy.BuildZombieProbe(s.srcIP, zombie, idleZombieSrcPort)
	if err != nil {
		return 0, err
	}
	if err := c.Send(zombie.IP, probe.Packet); err != nil {
		return 0, err
	}
	deadline := time.Now().Add(s.connTimeout)
	for time.Now().Before(deadline) {
		pkt, src, err := c.Recv(100 * time.Millisecond)
		if err != nil || pkt == nil {
			continue
		}
		if !src.Equal(zombie.IP) || len(pkt) < 20 {
			continue
		}
		ipid := binary.BigEndian.Uint16(pkt[4:6])
		return ipid, nil
	}
	return 0, fmt.Errorf("no reply from zombie %s", zombie.IP)
}

func (s *Scheduler) emitResult(res model.ScanResult, breaker *CircuitBreaker) {
	if res.State == model.StateOpen {
		breaker.RecordSuccess()
		s.enrich(&res)
	} else if res.State == model.StateFiltered {
		breaker.RecordFailure()
	}
	select {
	case s.results <- res:
	default:
	}
	if res.State == model.StateOpen {
		s.bus.Publish(events.New(events.EventPortFound, s.scanID, events.PortFoundPayload{
			Target: res.Target.String(), Port: res.Port, Proto: res.Proto, State: res.State,
		}))
	}
}

// enrich runs the Service Detector and, once per target, the OS
// Fingerprinter against a freshly discovered Open port. Both run
// synchronously on the goroutine that found the port: simpler than
// threading a second result type through the channel, at the cost of
// stalling that one goroutine for the probe's timeout — acceptable given
// MaxParallelism already bounds total in-flight work.
func (s *Scheduler) enrich(res *model.ScanResult) {
	ctx := context.Background()
	if s.serviceDetector != nil && res.Proto == model.ProtoTCP {
		if info, err := s.serviceDetector.Identify(ctx, res.Target, res.Port, s.connTimeout, s.versionIntensity); err == nil && info != nil {
			res.Service = info
		}
	}
	if s.osFinger != nil && res.Proto == model.ProtoTCP {
		key := res.Target.String()
		if _, done := s.osDone.LoadOrStore(key, true); !done {
			if info, err := s.osFinger.Identify(ctx, s.srcIP, res.Target, res.Port, s.closedPortHint, s.osTimeout); err == nil && info != nil {
				res.OS = info
			}
		}
	}
}

func (s *Scheduler) captureFor(proto model.Protocol) capture.Capture {
	if c, ok := s.captures[proto]; ok {
		return c
	}
	var protoNum int
	switch proto {
	case model.ProtoUDP:
		protoNum = capture.ProtoUDP
	case model.ProtoICMP:
		protoNum = capture.ProtoICMP
	default:
		protoNum = capture.ProtoTCP
	}
	c := capture.New(protoNum)
	if err := c.Open(""); err != nil {
		return nil
	}
	s.captures[proto] = c
	return c
}

// receiveLoop drains every open raw capture and hands inbound packets to
// the correlator (spec §5's single receiver task).
func (s *Scheduler) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if len(s.captures) == 0 {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		for _, c := range s.captures {
			pkt, src, err := c.Recv(100 * time.Millisecond)
			if err != nil || pkt == nil {
				continue
			}
			s.correlator.HandlePacket(pkt, src)
		}
	}
}

// sweepLoop periodically sweeps the probe store for timed-out probes,
// requeuing retries and finalizing exhausted ones as Filtered results
// (spec §4.5's exponential-backoff retry policy).
func (s *Scheduler) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			retry, exhausted := s.store.Sweep(time.Now())
			for _, p := range retry {
				backoff := probestore.NextBackoff(p.Attempt)
				p.Attempt++
				p.Deadline = time.Now().Add(backoff + s.connTimeout)
				p.State = model.ProbeQueued
				s.bus.Publish(events.New(events.EventRetryScheduled, s.scanID, events.RetryScheduledPayload{
					Target: p.Target.String(), Port: p.Port, Attempt: p.Attempt, NextTry: backoff,
				}))
			}
			for _, p := range exhausted {
				s.store.Remove(p.Key)
				select {
				case s.results <- model.ScanResult{
					Target: p.Target, Port: p.Port, Proto: p.Proto,
					State: model.StateFiltered, ObservedAt: time.Now(),
				}:
				default:
				}
			}
		}
	}
}

func needsRawCapture(v model.ScanVariant) bool {
	return v != model.VariantConnect
}
