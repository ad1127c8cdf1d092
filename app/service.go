package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"payments-engine/domain"
	"payments-engine/source"
	"payments-engine/store"
)

const (
	DefaultWorkers = 1

	// Buffered records per worker when fanning out.
	workerQueueSize = 256
)

// CommandSource yields records in input order and io.EOF at the end.
// *source.Reader satisfies it.
type CommandSource interface {
	Next() (source.Record, error)
}

// Stats summarizes one Process run.
type Stats struct {
	Records  int
	Accepted int
	Rejected int
	Clients  int
}

func (s *Stats) add(other Stats) {
	s.Records += other.Records
	s.Accepted += other.Accepted
	s.Rejected += other.Rejected
}

type Option func(*LedgerService)

// WithWorkers sets how many goroutines apply commands. Each client is
// pinned to one worker, so its commands keep their input order.
func WithWorkers(n int) Option {
	return func(s *LedgerService) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}

// LedgerService is the routing layer. It drains a command source, hands
// every record to the ledger of its client and collects the final
// snapshots.
type LedgerService struct {
	ledgers   store.LedgerStore
	snapshots store.SnapshotStore
	logger    *zap.Logger
	workers   int
}

func NewLedgerService(ls store.LedgerStore, ss store.SnapshotStore, logger *zap.Logger, opts ...Option) *LedgerService {
	if ls == nil || ss == nil {
		log.Fatal("FATAL: LedgerStore and SnapshotStore must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LedgerService{
		ledgers:   ls,
		snapshots: ss,
		logger:    logger,
		workers:   DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process applies every record of src. It stops at the first decode error
// or ledger defect and returns it; the ledgers must then be discarded.
func (s *LedgerService) Process(ctx context.Context, src CommandSource) (Stats, error) {
	var (
		stats Stats
		err   error
	)
	if s.workers <= 1 {
		stats, err = s.processSequential(ctx, src)
	} else {
		stats, err = s.processParallel(ctx, src)
	}
	stats.Clients = s.ledgers.Len()
	if err != nil {
		return stats, err
	}

	s.logger.Info("command stream processed",
		zap.Int("records", stats.Records),
		zap.Int("accepted", stats.Accepted),
		zap.Int("rejected", stats.Rejected),
		zap.Int("clients", stats.Clients),
		zap.Int("workers", s.workers),
	)
	return stats, nil
}

func (s *LedgerService) processSequential(ctx context.Context, src CommandSource) (Stats, error) {
	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			s.logger.Error("aborting: input cannot be decoded", zap.Error(err))
			return stats, err
		}
		stats.Records++
		if err := s.apply(rec, &stats); err != nil {
			return stats, err
		}
	}
}

// processParallel fans records out to workers keyed by client id and waits
// for all of them. No invariant spans two clients, so the only ordering to
// keep is per client.
func (s *LedgerService) processParallel(ctx context.Context, src CommandSource) (Stats, error) {
	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan source.Record, s.workers)
	for i := range queues {
		queues[i] = make(chan source.Record, workerQueueSize)
	}
	perWorker := make([]Stats, s.workers)
	var records int

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for {
			rec, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				s.logger.Error("aborting: input cannot be decoded", zap.Error(err))
				return err
			}
			records++
			select {
			case queues[int(rec.Client)%s.workers] <- rec:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	for i := range queues {
		g.Go(func() error {
			for rec := range queues[i] {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := s.apply(rec, &perWorker[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()

	stats := Stats{Records: records}
	for _, w := range perWorker {
		stats.add(w)
	}
	return stats, err
}

func (s *LedgerService) apply(rec source.Record, stats *Stats) error {
	ledger := s.ledgers.GetOrCreate(rec.Client)

	if err := ledger.Apply(rec.Command); err != nil {
		s.logger.Error("ledger defect, stopping",
			zap.Int("line", rec.Line),
			zap.Stringer("client", rec.Client),
			zap.Error(err),
		)
		return fmt.Errorf("line %d: %w", rec.Line, err)
	}

	changes := ledger.GetUncommittedChanges()
	if len(changes) == 0 {
		stats.Rejected++
		if ce := s.logger.Check(zap.DebugLevel, "command rejected"); ce != nil {
			ce.Write(
				zap.Int("line", rec.Line),
				zap.Stringer("client", rec.Client),
				zap.String("kind", string(rec.Command.Kind())),
				zap.Stringer("tx", rec.Command.TxID()),
				zap.NamedError("reason", ledger.LastRejection()),
			)
		}
		return nil
	}

	stats.Accepted++
	if ce := s.logger.Check(zap.DebugLevel, "command accepted"); ce != nil {
		base := changes[len(changes)-1].GetBase()
		ce.Write(
			zap.Int("line", rec.Line),
			zap.Stringer("client", rec.Client),
			zap.String("event", string(base.Type)),
			zap.Stringer("event_id", base.EventID),
			zap.Int("sequence", base.Sequence),
		)
	}
	return nil
}

// Snapshots captures the state of every ledger into the snapshot store and
// returns them ordered by client. Call it after Process succeeded. Clients
// already captured keep their first snapshot, so repeated calls return the
// same list.
func (s *LedgerService) Snapshots() ([]domain.Snapshot, error) {
	for _, id := range s.ledgers.ClientIDs() {
		if _, captured := s.snapshots.GetSnapshot(id); captured {
			continue
		}
		ledger, ok := s.ledgers.Get(id)
		if !ok {
			continue
		}
		if err := s.snapshots.SaveSnapshot(ledger.Snapshot()); err != nil {
			return nil, fmt.Errorf("failed to save snapshot for client %s: %w", id, err)
		}
	}
	return s.snapshots.ListSnapshots(), nil
}
