package datasets

import (
	"context"
	"errors"
	"io"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"golang.org/x/sync/errgroup"
)

// LoaderConfig holds the batching parameters of a Loader.
type LoaderConfig struct {
	// BatchSize is the number of examples per batch (default 128). The last
	// batch of an epoch may be smaller.
	BatchSize int

	// Workers is the number of goroutines assembling batches ahead of the
	// consumer (default 12).
	Workers int

	// Shuffle reorders the examples at the start of every epoch.
	Shuffle bool

	// Seed controls shuffling. Equal seeds give equal batch orders.
	Seed int64
}

// Loader serves a Dataset in mini-batches. A Loader is not safe for
// concurrent use; run one epoch at a time.
type Loader struct {
	Config LoaderConfig

	name  string
	ds    Dataset
	rng   *rand.Rand
	order []int

	// next is the position in order of the next Yield batch.
	next int
}

// NewLoader creates a loader over ds and shuffles it for the first epoch.
func NewLoader(name string, ds Dataset, cfg LoaderConfig) (*Loader, error) {
	if ds == nil {
		return nil, errors.New("dataset is nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 12
	}
	l := &Loader{
		Config: cfg,
		name:   name,
		ds:     ds,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		order:  make([]int, ds.Len()),
	}
	for i := range l.order {
		l.order[i] = i
	}
	l.permute()
	return l, nil
}

// Dataset returns the underlying dataset.
func (l *Loader) Dataset() Dataset { return l.ds }

// NumBatches returns the number of batches in one epoch.
func (l *Loader) NumBatches() int {
	return (l.ds.Len() + l.Config.BatchSize - 1) / l.Config.BatchSize
}

func (l *Loader) permute() {
	if !l.Config.Shuffle {
		return
	}
	l.rng.Shuffle(len(l.order), func(i, j int) {
		l.order[i], l.order[j] = l.order[j], l.order[i]
	})
}

// spans cuts the current order into batch-sized index slices.
func (l *Loader) spans() [][]int {
	spans := make([][]int, 0, l.NumBatches())
	for start := 0; start < len(l.order); start += l.Config.BatchSize {
		end := min(start+l.Config.BatchSize, len(l.order))
		spans = append(spans, l.order[start:end])
	}
	return spans
}

func (l *Loader) assemble(indices []int) (*Batch, error) {
	inputs, labels, err := l.ds.Batch(indices)
	if err != nil {
		return nil, err
	}
	return MakeBatch(inputs, labels)
}

// Epoch runs one pass over the dataset, calling fn with each batch in order.
// Batches are assembled by Config.Workers goroutines, at most two per worker
// ahead of fn. Returning an error from fn stops the epoch and that error is
// returned. The order is reshuffled after the epoch when Shuffle is set.
func (l *Loader) Epoch(ctx context.Context, fn func(*Batch) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	spans := l.spans()
	defer l.permute()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	slots := make([]chan *Batch, len(spans))
	for i := range slots {
		slots[i] = make(chan *Batch, 1)
	}
	ahead := make(chan struct{}, 2*l.Config.Workers)
	jobs := make(chan int)

	g.Go(func() error {
		defer close(jobs)
		for i := range spans {
			select {
			case ahead <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < l.Config.Workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				b, err := l.assemble(spans[i])
				if err != nil {
					return err
				}
				slots[i] <- b
			}
			return nil
		})
	}

	var consumeErr error
	delivered := 0
consume:
	for ; delivered < len(spans); delivered++ {
		select {
		case b := <-slots[delivered]:
			<-ahead
			if err := fn(b); err != nil {
				consumeErr = err
				break consume
			}
		case <-gctx.Done():
			break consume
		}
	}

	if consumeErr != nil {
		cancel()
		_ = g.Wait()
		return consumeErr
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if delivered < len(spans) {
		return ctx.Err()
	}
	return nil
}

// Name returns the loader name.
func (l *Loader) Name() string { return l.name }

// Yield returns the next batch as gomlx tensors: one [batch, dim] float32
// input and one [batch] int32 label tensor. It returns io.EOF at the end of
// the epoch; call Reset to start the next one.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if l.next >= len(l.order) {
		return nil, nil, nil, io.EOF
	}
	end := min(l.next+l.Config.BatchSize, len(l.order))
	b, err := l.assemble(l.order[l.next:end])
	if err != nil {
		return nil, nil, nil, err
	}
	l.next = end

	in, la, err := b.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}

// Reset starts a new epoch for Yield, reshuffling when Shuffle is set.
func (l *Loader) Reset() {
	l.permute()
	l.next = 0
}
