package collision

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/fcl/broadphase"
	"go.viam.com/fcl/bvh"
	"go.viam.com/fcl/config"
	"go.viam.com/fcl/geometry"
	"go.viam.com/fcl/logging"
	"go.viam.com/fcl/narrowphase"
	"go.viam.com/fcl/spatialmath"
	"go.viam.com/fcl/utils"
)

// Engine tracks a set of objects in a broad phase and answers narrow phase queries between them.
// All methods are safe for concurrent use; queries run concurrently with each other and are
// serialized only against changes to the tracked set.
type Engine struct {
	cfg      *config.Config
	logger   logging.Logger
	dispatch *dispatcher
	base     *narrowphase.Request
	bvhOpts  []bvh.Option

	mu      sync.RWMutex
	broad   broadphase.Manager
	objects map[uint64]*Object
	// seen is the pose version of each object when its bounds last reached the broad phase
	seen map[uint64]uint64

	queries  atomic.Uint64
	contacts atomic.Uint64
	failures atomic.Uint64
}

// Stats counts the work an engine has done since it was created.
type Stats struct {
	Queries           uint64
	Contacts          uint64
	NumericalFailures uint64
}

// ObjectPair is a pair of tracked objects whose bounds overlap. A has the smaller ID.
type ObjectPair struct {
	A, B *Object
}

// PairResult holds the contacts found between a pair of objects.
type PairResult struct {
	A, B     *Object
	Contacts []Contact
}

// PairDistance holds the distance between a pair of objects.
type PairDistance struct {
	A, B     *Object
	Distance DistanceResult
}

// NewEngine returns an engine configured by cfg. A nil cfg uses config.Default.
func NewEngine(cfg *config.Config, logger logging.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewBlankLogger("collision")
	}
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	opts, err := cfg.BVH.Options()
	if err != nil {
		return nil, err
	}
	broad, err := broadphase.New(cfg.BroadPhase, cfg.AABBMargin, logger.Sublogger("broadphase"))
	if err != nil {
		return nil, err
	}
	logger.Infow("collision engine created", "broad_phase", cfg.BroadPhase, "bvh_volume", cfg.BVH.Volume, "parallelism", cfg.Parallelism)
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		dispatch: defaultDispatcher,
		base:     cfg.Request(),
		bvhOpts:  opts,
		broad:    broad,
		objects:  map[uint64]*Object{},
		seen:     map[uint64]uint64{},
	}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// MeshOptions returns the hierarchy options triangle soups should be built with for this engine.
func (e *Engine) MeshOptions() []bvh.Option {
	return e.bvhOpts
}

// Insert starts tracking objects in the broad phase. Objects must have a pose.
func (e *Engine) Insert(objs ...*Object) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range objs {
		if o == nil {
			return newNilObjectError()
		}
		if o.Pose() == nil {
			return newMissingPoseError(o)
		}
		version := o.version.Load()
		if err := e.broad.Insert(o); err != nil {
			return errors.Wrapf(err, "inserting %s", o)
		}
		e.objects[o.ID()] = o
		e.seen[o.ID()] = version
	}
	return nil
}

// Remove stops tracking an object.
func (e *Engine) Remove(o *Object) error {
	if o == nil {
		return newNilObjectError()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.broad.Remove(o); err != nil {
		return errors.Wrapf(err, "removing %s", o)
	}
	delete(e.objects, o.ID())
	delete(e.seen, o.ID())
	return nil
}

// Update refreshes the broad phase after an object was moved with Object.SetPose. Broad phase
// queries do this for every moved object, so calling it is only needed to pay the cost early.
func (e *Engine) Update(o *Object) error {
	if o == nil {
		return newNilObjectError()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update(o)
}

func (e *Engine) update(o *Object) error {
	version := o.version.Load()
	if err := e.broad.Update(o); err != nil {
		return err
	}
	e.seen[o.ID()] = version
	return nil
}

// refresh hands the bounds of every object moved since it was last seen to the broad phase.
func (e *Engine) refresh() {
	e.mu.RLock()
	stale := lo.Filter(lo.Values(e.objects), func(o *Object, _ int) bool {
		return o.version.Load() != e.seen[o.ID()]
	})
	e.mu.RUnlock()
	if len(stale) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range stale {
		if _, ok := e.objects[o.ID()]; !ok {
			continue
		}
		if o.Pose() == nil {
			e.logger.Warnw("tracked object lost its pose; keeping its last bounds", "object", o.ID())
			continue
		}
		if err := e.update(o); err != nil {
			e.logger.Warnw("refreshing broad phase bounds", "object", o.ID(), "error", err)
		}
	}
}

// SetPose moves a tracked object and refreshes the broad phase in one step.
func (e *Engine) SetPose(o *Object, pose spatialmath.Pose) error {
	if o == nil {
		return newNilObjectError()
	}
	if pose == nil {
		return errors.Wrap(ErrInvalidQuery, "cannot clear the pose of a tracked object")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	o.SetPose(pose)
	return e.update(o)
}

// Len returns the number of tracked objects.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.objects)
}

// Objects returns the tracked objects ordered by ID.
func (e *Engine) Objects() []*Object {
	e.mu.RLock()
	defer e.mu.RUnlock()
	objs := lo.Values(e.objects)
	sort.Slice(objs, func(i, j int) bool { return objs[i].ID() < objs[j].ID() })
	return objs
}

// OverlappingPairs returns every pair of tracked objects whose bounds overlap, ordered by ID.
func (e *Engine) OverlappingPairs() []ObjectPair {
	e.refresh()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return lo.Map(e.broad.OverlappingPairs(), func(p broadphase.Pair, _ int) ObjectPair {
		return ObjectPair{A: e.objects[p.A.ID()], B: e.objects[p.B.ID()]}
	})
}

// Query returns the tracked objects whose bounds overlap box, ordered by ID.
func (e *Engine) Query(box spatialmath.AABB) []*Object {
	e.refresh()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return lo.Map(e.broad.Query(box), func(p broadphase.Proxy, _ int) *Object { return e.objects[p.ID()] })
}

func posesOf(a, b *Object) (spatialmath.Pose, spatialmath.Pose, error) {
	if a == nil || b == nil {
		return nil, nil, newNilObjectError()
	}
	pa, pb := a.Pose(), b.Pose()
	if pa == nil {
		return nil, nil, newMissingPoseError(a)
	}
	if pb == nil {
		return nil, nil, newMissingPoseError(b)
	}
	return pa, pb, nil
}

// record updates the counters and logs solver failures.
func (e *Engine) record(op string, a, b geometry.Shape, contacts int, err error) {
	e.queries.Inc()
	e.contacts.Add(uint64(contacts))
	if errors.Is(err, ErrNumericalFailure) {
		e.failures.Inc()
		e.logger.Warnw("solver did not converge", "query", op, "a", a.Kind(), "b", b.Kind(), "error", err)
	}
}

// Collide reports the contacts between two objects at their current poses. A nil opts uses the
// engine's configured query options.
func (e *Engine) Collide(a, b *Object, opts *QueryOptions) ([]Contact, error) {
	pa, pb, err := posesOf(a, b)
	if err != nil {
		return nil, err
	}
	req := e.base
	if opts != nil {
		req = opts.request(e.base)
	}
	e.logger.Debugw("collide", "a", a.ID(), "a_kind", a.Shape().Kind(), "b", b.ID(), "b_kind", b.Shape().Kind())
	contacts, err := e.dispatch.collide(a.Shape(), pa, b.Shape(), pb, req)
	e.record("collide", a.Shape(), b.Shape(), len(contacts), err)
	return contacts, err
}

// Distance returns the signed distance between two objects at their current poses.
func (e *Engine) Distance(a, b *Object) (DistanceResult, error) {
	pa, pb, err := posesOf(a, b)
	if err != nil {
		return DistanceResult{}, err
	}
	e.logger.Debugw("distance", "a", a.ID(), "a_kind", a.Shape().Kind(), "b", b.ID(), "b_kind", b.Shape().Kind())
	d, err := e.dispatch.distance(a.Shape(), pa, b.Shape(), pb, e.base)
	e.record("distance", a.Shape(), b.Shape(), 0, err)
	return d, err
}

// ContinuousCollide finds the first time two objects moving along the given motions touch. The
// objects' own poses are not used or changed.
func (e *Engine) ContinuousCollide(a *Object, ma Motion, b *Object, mb Motion) (ContinuousResult, error) {
	if a == nil || b == nil {
		return ContinuousResult{}, newNilObjectError()
	}
	res, err := continuous(e.dispatch, a.Shape(), ma, b.Shape(), mb, e.base, e.cfg.ContinuousRequest())
	e.record("continuous", a.Shape(), b.Shape(), 0, err)
	return res, err
}

// CollideAll runs the broad phase once and then collides every candidate pair in parallel. It
// returns the pairs that have contacts, ordered by ID. Solver failures on individual pairs are
// combined into the returned error without stopping the other pairs.
func (e *Engine) CollideAll(ctx context.Context, opts *QueryOptions) ([]PairResult, error) {
	pairs := e.OverlappingPairs()
	results := make([]PairResult, len(pairs))
	err := utils.GroupWorkParallel(ctx, len(pairs), e.cfg.Parallelism, func(ctx context.Context, _, from, to int) error {
		var errs error
		for i := from; i < to; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := pairs[i]
			contacts, err := e.Collide(p.A, p.B, opts)
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "%s and %s", p.A, p.B))
			}
			results[i] = PairResult{A: p.A, B: p.B, Contacts: contacts}
		}
		return errs
	})
	return lo.Filter(results, func(r PairResult, _ int) bool { return len(r.Contacts) > 0 }), err
}

// DistanceAll measures the distance between every pair of tracked objects in parallel, ordered by
// the IDs of the pair.
func (e *Engine) DistanceAll(ctx context.Context) ([]PairDistance, error) {
	objs := e.Objects()
	var pairs []ObjectPair
	for i := range objs {
		for j := i + 1; j < len(objs); j++ {
			pairs = append(pairs, ObjectPair{A: objs[i], B: objs[j]})
		}
	}
	results := make([]PairDistance, len(pairs))
	err := utils.GroupWorkParallel(ctx, len(pairs), e.cfg.Parallelism, func(ctx context.Context, _, from, to int) error {
		var errs error
		for i := from; i < to; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := pairs[i]
			d, err := e.Distance(p.A, p.B)
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "%s and %s", p.A, p.B))
			}
			results[i] = PairDistance{A: p.A, B: p.B, Distance: d}
		}
		return errs
	})
	return results, err
}

// Stats returns the engine's counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Queries:           e.queries.Load(),
		Contacts:          e.contacts.Load(),
		NumericalFailures: e.failures.Load(),
	}
}
