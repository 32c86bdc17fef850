// Package trace records sampled values and coordinator events during a run
// and persists them as JSON lines in a blob bucket.
package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"

	_ "gocloud.dev/blob/memblob"

	"github.com/vinayprograms/quiesce/bus"
	"github.com/vinayprograms/quiesce/errors"
	"github.com/vinayprograms/quiesce/logging"
)

type (
	// BucketWriter is the part of *blob.Bucket the recorder writes through.
	BucketWriter interface {
		WriteAll(context.Context, string, []byte, *blob.WriterOptions) error
	}

	// Record is one line of the trace.
	Record struct {
		At     time.Duration   `json:"at"`
		Kind   string          `json:"kind"`
		Source string          `json:"source"`
		Value  *uint64         `json:"value,omitempty"`
		Event  json.RawMessage `json:"event,omitempty"`

		seq uint64
	}

	// Recorder collects records in memory and writes them on Close.
	Recorder struct {
		bucket BucketWriter
		key    string
		log    *logging.Logger

		mu      sync.Mutex
		records []Record
		seq     uint64
		closed  bool

		subs    []bus.Subscription
		watches []dropWatch
		wg      sync.WaitGroup
	}

	// lossyBus is implemented by buses that count undelivered messages.
	lossyBus interface {
		Dropped() uint64
	}

	dropWatch struct {
		bus  lossyBus
		base uint64
	}
)

const (
	KindSample = "sample"
	KindEvent  = "event"
)

// ErrBucketRequired is returned when no bucket is supplied.
var ErrBucketRequired = errors.New(errors.ErrCodeInvalidArgument, "bucket is required")

// NewRecorder creates a recorder that writes to key in bucket.
func NewRecorder(bucket BucketWriter, key string, log *logging.Logger) (*Recorder, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	if key == "" {
		return nil, errors.InvalidArgument("trace key is required")
	}
	if log == nil {
		log = logging.New()
	}
	return &Recorder{
		bucket: bucket,
		key:    key,
		log:    log.WithComponent("trace"),
	}, nil
}

// OpenBucket opens a bucket URL. file:// URLs may name a relative
// directory, which is created when missing.
func OpenBucket(ctx context.Context, url string) (*blob.Bucket, error) {
	if dir, ok := strings.CutPrefix(url, "file://"); ok {
		if dir == "" {
			dir = "."
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving trace directory %s", dir)
		}
		b, err := fileblob.OpenBucket(abs, &fileblob.Options{CreateDir: true})
		if err != nil {
			return nil, errors.Wrapf(err, "opening trace directory %s", abs)
		}
		return b, nil
	}
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "opening trace bucket %s", url)
	}
	return b, nil
}

// Sample records a value observed on source at simulated time at.
func (r *Recorder) Sample(at time.Duration, source string, value uint64) {
	v := value
	r.add(Record{At: at, Kind: KindSample, Source: source, Value: &v})
}

// Attach records every bus message matching the given patterns. Each
// payload must be a JSON object carrying an "at" field. Messages the bus
// drops while attached are reported as a warning on Close.
func (r *Recorder) Attach(b bus.MessageBus, patterns ...string) error {
	if lb, ok := b.(lossyBus); ok {
		r.mu.Lock()
		r.watches = append(r.watches, dropWatch{bus: lb, base: lb.Dropped()})
		r.mu.Unlock()
	}
	for _, pattern := range patterns {
		sub, err := b.Subscribe(pattern)
		if err != nil {
			return errors.Wrapf(err, "subscribing to %s", pattern)
		}
		r.mu.Lock()
		r.subs = append(r.subs, sub)
		r.mu.Unlock()

		r.wg.Add(1)
		go r.consume(sub)
	}
	return nil
}

func (r *Recorder) consume(sub bus.Subscription) {
	defer r.wg.Done()
	for msg := range sub.Messages() {
		var stamp struct {
			At time.Duration `json:"at"`
		}
		if err := json.Unmarshal(msg.Data, &stamp); err != nil {
			r.log.Warn("undecodable event", map[string]interface{}{
				"subject": msg.Subject,
				"error":   err,
			})
			continue
		}
		r.add(Record{
			At:     stamp.At,
			Kind:   KindEvent,
			Source: msg.Subject,
			Event:  json.RawMessage(msg.Data),
		})
	}
}

func (r *Recorder) add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.seq++
	rec.seq = r.seq
	r.records = append(r.records, rec)
}

// Len returns the number of records collected so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Close detaches from the bus, drains pending messages and writes the
// records ordered by simulated time. Closing twice is a no-op.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	subs, watches := r.subs, r.watches
	r.subs, r.watches = nil, nil
	r.mu.Unlock()

	var dropped uint64
	for _, w := range watches {
		dropped += w.bus.Dropped() - w.base
	}
	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	r.wg.Wait()

	if dropped > 0 {
		r.log.Warn("trace is missing bus events", map[string]interface{}{
			"dropped": dropped,
		})
	}

	r.mu.Lock()
	r.closed = true
	records := r.records
	r.records = nil
	r.mu.Unlock()

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].At != records[j].At {
			return records[i].At < records[j].At
		}
		return records[i].seq < records[j].seq
	})

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return errors.Wrap(err, "encoding trace record")
		}
	}

	opts := &blob.WriterOptions{ContentType: "application/x-ndjson"}
	if err := r.bucket.WriteAll(ctx, r.key, buf.Bytes(), opts); err != nil {
		return errors.Wrap(err, fmt.Sprintf("writing trace %s", r.key))
	}
	r.log.Info("trace written", map[string]interface{}{
		"key":     r.key,
		"records": len(records),
	})
	return nil
}
