package fusion

import (
	"fmt"
	"log"

	"github.com/abworrall/ispfuse/pkg/geom"
	"github.com/abworrall/ispfuse/pkg/hwstats"
	"github.com/abworrall/ispfuse/pkg/result"
)

// An Engine fuses the statistics from the two ISPs of a dual ISP
// session into one set, as if a single ISP had seen the whole image.
// It is called once per frame, from one goroutine; it keeps nothing
// from one frame to the next.
type Engine struct {
	cfg Config
	dec hwstats.StatDecoder
	bls BlsContext

	// Geometry, worked out whenever the config changes
	aeLiteMode, aeBigMode     geom.SplitMode
	histLiteMode, histBigMode geom.SplitMode
	awbMode                   geom.SplitMode
	afPlan                    geom.BlockPlan
}

func NewEngine(cfg Config) (*Engine, error) {
	e := &Engine{}
	if err := e.Configure(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Configure replaces the config, and recomputes all the geometry.
func (e *Engine) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dec, err := hwstats.DecoderByName(cfg.Hardware)
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.dec = dec
	e.bls = DeriveBls(cfg)

	e.aeLiteMode = geom.Classify(cfg.AeLite, cfg.Isp)
	e.aeBigMode = geom.Classify(cfg.AeBig, cfg.Isp)
	e.histLiteMode = geom.Classify(cfg.HistLite, cfg.Isp)
	e.histBigMode = geom.Classify(cfg.HistBig, cfg.Isp)
	e.awbMode = geom.Classify(cfg.Awb, cfg.Isp)
	e.afPlan = geom.MapAfBlocks(cfg.AfA, cfg.AfB, cfg.Isp, dec.AfGrid())

	if cfg.Verbosity > 0 {
		log.Printf("fusion: %s, isp %s/%s, %s\n", dec.Name(), cfg.Isp.Left, cfg.Isp.Right, e.bls)
		log.Printf("fusion: ae %s/%s, hist %s/%s, awb %s, %s\n", e.aeLiteMode, e.aeBigMode,
			e.histLiteMode, e.histBigMode, e.awbMode, e.afPlan)
	}

	return nil
}

func (e *Engine) Config() Config             { return e.cfg }
func (e *Engine) Decoder() hwstats.StatDecoder { return e.dec }
func (e *Engine) Bls() BlsContext            { return e.bls }
func (e *Engine) AfPlan() geom.BlockPlan     { return e.afPlan }

// precheck does the validity checks common to every kind of stat. If
// ok is false, the returned result should be passed straight back.
func precheck[T any](dec hwstats.StatDecoder, op string, l, r *hwstats.RawStatBuffer, bits ...uint) (res result.Result[T], ok bool) {
	if l == nil || r == nil {
		return result.Bypass[T](op + ": stats buffer not ready"), false
	}
	if err := dec.Validate(l); err != nil {
		return result.Bypass[T](fmt.Sprintf("%s: left: %v", op, err)), false
	}
	if err := dec.Validate(r); err != nil {
		return result.Bypass[T](fmt.Sprintf("%s: right: %v", op, err)), false
	}

	if l.FrameID != r.FrameID || l.MeasType != r.MeasType {
		return result.Fail[T](result.Paramf(op, "left/right isp differ: frame %d/%d, meas_type %s/%s",
			l.FrameID, r.FrameID, l.MeasType, r.MeasType)), false
	}

	if !l.MeasType.Has(bits...) {
		return result.Bypass[T](fmt.Sprintf("%s: stats not valid in %s", op, l.MeasType)), false
	}

	return res, true
}

// FuseFrame fuses every kind of statistic. Kinds that are bypassed are
// left nil, and marked not valid; a parameter error fails the whole
// frame.
func (e *Engine) FuseFrame(l, r *hwstats.RawStatBuffer) (*MergedStatRecord, error) {
	rec := &MergedStatRecord{}
	if l != nil {
		rec.FrameID = l.FrameID
	}

	var err error
	if rec.Ae, rec.AeValid, err = collect(e.FuseAe(l, r)); err != nil {
		return nil, err
	}
	if rec.Awb, rec.AwbValid, err = collect(e.FuseAwb(l, r)); err != nil {
		return nil, err
	}
	if rec.Af, rec.AfValid, err = collect(e.FuseAf(l, r)); err != nil {
		return nil, err
	}
	if rec.Dhaz, rec.DhazValid, err = collect(e.FuseDehaze(l, r)); err != nil {
		return nil, err
	}

	if e.cfg.Verbosity > 1 {
		log.Printf("fusion: frame %d: %s\n", rec.FrameID, rec)
	}

	return rec, nil
}

func collect[T any](res result.Result[*T]) (*T, bool, error) {
	switch res.Status {
	case result.StatusOk:
		return res.Value, true, nil
	case result.StatusBypass:
		return nil, false, nil
	default:
		return nil, false, res.Err
	}
}
