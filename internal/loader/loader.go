package loader

import (
	"context"
	"fmt"
	"time"

	convertdomain "github.com/greendigit/cnr-ingest/internal/convert/domain"
	"github.com/greendigit/cnr-ingest/internal/metrics"
	"github.com/greendigit/cnr-ingest/internal/reference"
	referencedomain "github.com/greendigit/cnr-ingest/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Phase tracks the loader state machine for one flush cycle.
type Phase string

const (
	PhaseScanning   Phase = "scanning"
	PhaseGrouping   Phase = "grouping"
	PhaseFlushing   Phase = "flushing"
	PhaseCommitted  Phase = "committed"
	PhaseRolledBack Phase = "rolled_back"
)

// Summary reports one loading run.
type Summary struct {
	Seen     int64
	Inserted int64
	Skipped  int64
	Flushes  int64
}

type group struct {
	envs    []*convertdomain.Envelope
	siteIDs []int64
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	RefRepo referencedomain.Repository
	Metrics *metrics.Recorder `optional:"true"`
	Config  Config            `optional:"true"`
}

// Loader buffers envelopes and bulk-inserts them in per-type groups, one
// transaction per flush. Reference-data resolution shares the flush
// transaction so site creation and the fact/detail inserts observe each
// other's writes. Not safe for concurrent use.
type Loader struct {
	db      *gorm.DB
	log     *zap.Logger
	session *reference.Session
	metrics *metrics.Recorder
	cfg     Config

	now func() time.Time

	tx      *gorm.DB
	phase   Phase
	groups  map[convertdomain.PayloadType]*group
	pending int
	summary Summary
}

func NewLoader(p Params) *Loader {
	return &Loader{
		db:      p.DB,
		log:     p.Log.Named("loader"),
		session: reference.NewSession(p.RefRepo),
		metrics: p.Metrics,
		cfg:     p.Config.withDefaults(),
		now:     func() time.Time { return time.Now().UTC() },
		phase:   PhaseScanning,
		groups:  make(map[convertdomain.PayloadType]*group),
	}
}

// Add scans one envelope: classifies it by site type, resolves reference
// rows, applies the required-field backfill and buffers it for the next
// flush. Envelopes with an unknown site type or a missing fact are skipped,
// not errored; they surface only in the summary counts.
func (l *Loader) Add(ctx context.Context, env *convertdomain.Envelope) error {
	l.summary.Seen++
	l.metrics.IncSeen()
	l.phase = PhaseScanning

	if env == nil || env.Fact == nil || !env.Sites.SiteType.Valid() {
		l.summary.Skipped++
		l.metrics.IncSkipped()
		return nil
	}
	siteType := env.Sites.SiteType

	if err := l.ensureTx(ctx); err != nil {
		return err
	}

	// The sites table has a foreign key to site_type_detail, so the mapping
	// row must exist before the site row.
	if _, err := l.session.EnsureTypeMapping(ctx, l.tx, siteType); err != nil {
		return l.abort(err)
	}

	Backfill(env.Fact, l.now())

	desc := "unknown"
	if env.Fact.Site != nil && *env.Fact.Site != "" {
		desc = *env.Fact.Site
	}
	siteID, err := l.session.GetOrCreateSite(ctx, l.tx, siteType, desc)
	if err != nil {
		return l.abort(err)
	}
	env.Fact.SiteID = &siteID

	g := l.groups[siteType]
	if g == nil {
		g = &group{}
		l.groups[siteType] = g
	}
	g.envs = append(g.envs, env)
	g.siteIDs = append(g.siteIDs, siteID)
	l.pending++

	if l.pending >= l.cfg.BatchSize {
		if err := l.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes every buffered group inside the current transaction and
// finishes it: commit on a real run, rollback on a dry run. A flush either
// fully commits or fully rolls back; there is no partial commit across
// groups.
func (l *Loader) Flush(ctx context.Context) error {
	if l.pending == 0 {
		return nil
	}
	if l.tx == nil {
		return fmt.Errorf("flush without an active transaction")
	}

	l.phase = PhaseGrouping
	inserted := int64(0)

	l.phase = PhaseFlushing
	for siteType, g := range l.groups {
		n, err := l.flushGroup(ctx, siteType, g)
		if err != nil {
			l.metrics.IncFlushError()
			return l.abort(fmt.Errorf("flush %s group: %w", siteType, err))
		}
		inserted += n
	}

	if l.cfg.DryRun {
		// The fact/detail inserts above ran for real, so constraint
		// violations surface in dry runs too; the rollback undoes them
		// along with every mapping/site insert made while scanning.
		if err := l.tx.Rollback().Error; err != nil {
			return l.abort(fmt.Errorf("rollback dry-run flush: %w", err))
		}
		l.session.Invalidate()
		l.phase = PhaseRolledBack
		l.metrics.IncFlush("rolled_back")
	} else {
		if err := l.tx.Commit().Error; err != nil {
			return l.abort(fmt.Errorf("commit flush: %w", err))
		}
		l.phase = PhaseCommitted
		l.metrics.IncFlush("committed")
	}

	l.tx = nil
	l.summary.Inserted += inserted
	l.summary.Flushes++
	l.metrics.AddInserted(int(inserted))
	l.resetGroups()

	l.log.Info("flush finished",
		zap.String("phase", string(l.phase)),
		zap.Int64("inserted", l.summary.Inserted),
		zap.Int64("seen", l.summary.Seen),
	)
	return nil
}

func (l *Loader) flushGroup(ctx context.Context, siteType convertdomain.PayloadType, g *group) (int64, error) {
	if len(g.envs) == 0 {
		return 0, nil
	}

	facts := make([]convertdomain.Fact, len(g.envs))
	for i, env := range g.envs {
		fact := *env.Fact
		// The store assigns event ids; the converter's deterministic id
		// only travels in the envelope.
		fact.EventID = 0
		siteID := g.siteIDs[i]
		fact.SiteID = &siteID
		facts[i] = fact
	}

	if err := l.tx.WithContext(ctx).Create(&facts).Error; err != nil {
		return 0, fmt.Errorf("insert fact rows: %w", err)
	}

	// Detail rows correlate to the store-assigned event ids by position.
	switch siteType {
	case convertdomain.PayloadGrid:
		rows := make([]convertdomain.GridDetail, len(g.envs))
		for i, env := range g.envs {
			row := detailOrEmptyGrid(env)
			row.EventID = facts[i].EventID
			row.SiteID = facts[i].SiteID
			row.ExecUnitID = facts[i].ExecUnitID
			rows[i] = row
		}
		if err := l.tx.WithContext(ctx).Create(&rows).Error; err != nil {
			return 0, fmt.Errorf("insert grid detail rows: %w", err)
		}
	case convertdomain.PayloadCloud:
		rows := make([]convertdomain.CloudDetail, len(g.envs))
		for i, env := range g.envs {
			row := detailOrEmptyCloud(env)
			row.EventID = facts[i].EventID
			row.SiteID = facts[i].SiteID
			row.ExecUnitID = facts[i].ExecUnitID
			rows[i] = row
		}
		if err := l.tx.WithContext(ctx).Create(&rows).Error; err != nil {
			return 0, fmt.Errorf("insert cloud detail rows: %w", err)
		}
	case convertdomain.PayloadNetwork:
		rows := make([]convertdomain.NetworkDetail, len(g.envs))
		for i, env := range g.envs {
			row := detailOrEmptyNetwork(env)
			row.EventID = facts[i].EventID
			row.SiteID = facts[i].SiteID
			row.ExecUnitID = facts[i].ExecUnitID
			rows[i] = row
		}
		if err := l.tx.WithContext(ctx).Create(&rows).Error; err != nil {
			return 0, fmt.Errorf("insert network detail rows: %w", err)
		}
	}

	return int64(len(facts)), nil
}

// Close flushes whatever is still buffered and returns the run summary. A
// run may be aborted between flushes without corrupting state: every
// completed flush is already durable.
func (l *Loader) Close(ctx context.Context) (Summary, error) {
	if err := l.Flush(ctx); err != nil {
		return l.summary, err
	}
	if l.tx != nil {
		// Reference rows were created but nothing was buffered; finish
		// the transaction the same way a flush would.
		if l.cfg.DryRun {
			if err := l.tx.Rollback().Error; err != nil {
				return l.summary, fmt.Errorf("rollback trailing transaction: %w", err)
			}
			l.session.Invalidate()
		} else {
			if err := l.tx.Commit().Error; err != nil {
				return l.summary, fmt.Errorf("commit trailing transaction: %w", err)
			}
		}
		l.tx = nil
	}
	return l.summary, nil
}

// Summary returns the counts so far.
func (l *Loader) Summary() Summary { return l.summary }

// Abort discards everything buffered since the last flush and rolls the
// active transaction back. Flushes committed earlier stay durable; the
// caller uses this instead of Close when the input turned out to be bad, so
// a partial file never half-commits and a retry never double-inserts.
func (l *Loader) Abort() Summary {
	if l.tx != nil {
		if err := l.tx.Rollback().Error; err != nil {
			l.log.Warn("rollback after abort", zap.Error(err))
		}
		l.tx = nil
	}
	l.session.Invalidate()
	l.resetGroups()
	l.phase = PhaseRolledBack
	return l.summary
}

func (l *Loader) ensureTx(ctx context.Context) error {
	if l.tx != nil {
		return nil
	}
	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin transaction: %w", tx.Error)
	}
	l.tx = tx
	return nil
}

// abort is the store-failure variant of Abort: same cleanup, with the cause
// handed back so the flush error propagates.
func (l *Loader) abort(cause error) error {
	l.Abort()
	return cause
}

func (l *Loader) resetGroups() {
	l.groups = make(map[convertdomain.PayloadType]*group)
	l.pending = 0
}

func detailOrEmptyGrid(env *convertdomain.Envelope) convertdomain.GridDetail {
	if env.DetailGrid != nil {
		return *env.DetailGrid
	}
	return convertdomain.GridDetail{}
}

func detailOrEmptyCloud(env *convertdomain.Envelope) convertdomain.CloudDetail {
	if env.DetailCloud != nil {
		return *env.DetailCloud
	}
	return convertdomain.CloudDetail{}
}

func detailOrEmptyNetwork(env *convertdomain.Envelope) convertdomain.NetworkDetail {
	if env.DetailNetwork != nil {
		return *env.DetailNetwork
	}
	return convertdomain.NetworkDetail{}
}
