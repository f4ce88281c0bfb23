package processing

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	customlog "github.com/open-teleop/dashboard/pkg/log"
)

// ProcessResult is the outcome of handling one inbound message
type ProcessResult struct {
	Topic     string
	Timestamp int64
	Duration  time.Duration
	Error     error
}

// ResultHandler receives every ProcessResult
type ResultHandler func(result *ProcessResult)

// MessageProcessor handles one message on a worker goroutine
type MessageProcessor func(msg *Message) error

// PoolMetrics is a snapshot of a pool's counters
type PoolMetrics struct {
	ProcessedCount    int64 `json:"processed"`
	ErrorCount        int64 `json:"errors"`
	QueuedCount       int64 `json:"queued"`
	DroppedCount      int64 `json:"dropped"`
	QueueLength       int   `json:"queue_length"`
	LastProcessedTime int64 `json:"last_processed_ns"`
	ProcessingTimeAvg int64 `json:"avg_time_us"`
	ProcessingTimeMax int64 `json:"max_time_us"`
}

type poolCounters struct {
	processed     atomic.Int64
	errors        atomic.Int64
	queued        atomic.Int64
	dropped       atomic.Int64
	lastProcessed atomic.Int64
	avgMicros     atomic.Int64
	maxMicros     atomic.Int64
}

// observe folds one processing time into the running figures.
// The average is an exponential moving average with weight 1/8.
func (c *poolCounters) observe(elapsed time.Duration, err error) {
	us := elapsed.Microseconds()

	c.processed.Add(1)
	c.lastProcessed.Store(time.Now().UnixNano())
	if err != nil {
		c.errors.Add(1)
	}

	for {
		avg := c.avgMicros.Load()
		next := us
		if avg != 0 {
			next = avg + (us-avg)/8
		}
		if c.avgMicros.CompareAndSwap(avg, next) {
			break
		}
	}
	for {
		max := c.maxMicros.Load()
		if us <= max || c.maxMicros.CompareAndSwap(max, us) {
			break
		}
	}
}

// ProcessingPool runs a fixed set of workers for one priority class.
// Each worker owns a queue and a topic is always routed to the same worker,
// so messages on one topic are handled in arrival order.
type ProcessingPool struct {
	name      string
	logger    customlog.Logger
	queueSize int
	queues    []chan *Message
	wg        sync.WaitGroup

	mu            sync.RWMutex
	running       bool
	processor     MessageProcessor
	resultHandler ResultHandler

	counters poolCounters
}

// NewProcessingPool creates a pool with workerCount workers, each with a queue of queueSize
func NewProcessingPool(name string, workerCount int, queueSize int, logger customlog.Logger) *ProcessingPool {
	if workerCount < 1 {
		workerCount = 1
	}
	queues := make([]chan *Message, workerCount)
	for i := range queues {
		queues[i] = make(chan *Message, queueSize)
	}
	return &ProcessingPool{
		name:      name,
		logger:    logger.WithField("pool", name),
		queueSize: queueSize,
		queues:    queues,
	}
}

// SetProcessor sets the message processor function
func (p *ProcessingPool) SetProcessor(processor MessageProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processor = processor
}

// SetResultHandler sets the result handler function
func (p *ProcessingPool) SetResultHandler(handler ResultHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resultHandler = handler
}

func (p *ProcessingPool) queueFor(topic string) chan *Message {
	if len(p.queues) == 1 {
		return p.queues[0]
	}
	h := fnv.New32a()
	h.Write([]byte(topic))
	return p.queues[h.Sum32()%uint32(len(p.queues))]
}

// ProcessMessage queues msg without blocking. It returns false when the pool
// is stopped or the topic's queue is full.
func (p *ProcessingPool) ProcessMessage(msg *Message) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		p.logger.Warnf("Pool not running, discarding message for %s", msg.Topic)
		return false
	}

	p.counters.queued.Add(1)
	select {
	case p.queueFor(msg.Topic) <- msg:
		return true
	default:
		p.counters.dropped.Add(1)
		p.logger.Warnf("Queue full, discarding message for %s", msg.Topic)
		return false
	}
}

// Start launches the workers
func (p *ProcessingPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.logger.Infof("Starting %s priority pool with %d workers", p.name, len(p.queues))

	for i, queue := range p.queues {
		p.wg.Add(1)
		go p.worker(i, queue)
	}
}

// Stop closes the queues and waits for the workers to drain them.
// A stopped pool cannot be restarted.
func (p *ProcessingPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	for _, queue := range p.queues {
		close(queue)
	}
	p.mu.Unlock()

	p.wg.Wait()

	m := p.GetMetrics()
	p.logger.Infof("%s pool stopped: processed=%d errors=%d dropped=%d avg_time=%dµs max_time=%dµs",
		p.name, m.ProcessedCount, m.ErrorCount, m.DroppedCount, m.ProcessingTimeAvg, m.ProcessingTimeMax)
}

func (p *ProcessingPool) worker(id int, queue <-chan *Message) {
	defer p.wg.Done()

	for msg := range queue {
		p.mu.RLock()
		processor := p.processor
		resultHandler := p.resultHandler
		p.mu.RUnlock()

		if processor == nil {
			p.logger.Errorf("No message processor set, dropping message for %s", msg.Topic)
			continue
		}

		start := time.Now()
		err := processor(msg)
		elapsed := time.Since(start)
		p.counters.observe(elapsed, err)

		if resultHandler != nil {
			resultHandler(&ProcessResult{
				Topic:     msg.Topic,
				Timestamp: msg.Timestamp,
				Duration:  elapsed,
				Error:     err,
			})
		}
	}

	p.logger.Debugf("Worker %d stopped", id)
}

// GetMetrics returns a snapshot of the pool counters
func (p *ProcessingPool) GetMetrics() PoolMetrics {
	return PoolMetrics{
		ProcessedCount:    p.counters.processed.Load(),
		ErrorCount:        p.counters.errors.Load(),
		QueuedCount:       p.counters.queued.Load(),
		DroppedCount:      p.counters.dropped.Load(),
		QueueLength:       p.GetQueueLength(),
		LastProcessedTime: p.counters.lastProcessed.Load(),
		ProcessingTimeAvg: p.counters.avgMicros.Load(),
		ProcessingTimeMax: p.counters.maxMicros.Load(),
	}
}

// GetName returns the pool name
func (p *ProcessingPool) GetName() string {
	return p.name
}

// GetQueueLength returns the number of messages waiting across all workers
func (p *ProcessingPool) GetQueueLength() int {
	n := 0
	for _, queue := range p.queues {
		n += len(queue)
	}
	return n
}

// GetQueueCapacity returns the total queue capacity
func (p *ProcessingPool) GetQueueCapacity() int {
	return p.queueSize * len(p.queues)
}
