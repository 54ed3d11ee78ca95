package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultBuffer — размер очереди уведомлений.
const DefaultBuffer = 32

// TimeoutFunc возвращает время показа уведомления.
type TimeoutFunc func(ctx context.Context) time.Duration

// Notifier доставляет уведомления оператору асинхронно.
// Notify никогда не блокирует: при переполненной очереди сообщение отбрасывается.
type Notifier struct {
	logger  *zap.SugaredLogger
	timeout TimeoutFunc

	queue   chan string
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// New запускает воркер уведомлений. timeout может быть nil.
func New(logger *zap.SugaredLogger, timeout TimeoutFunc, buffer int) *Notifier {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	n := &Notifier{
		logger:  logger,
		timeout: timeout,
		queue:   make(chan string, buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify ставит сообщение в очередь.
func (n *Notifier) Notify(msg string) {
	select {
	case <-n.done:
		n.dropped.Add(1)
		return
	default:
	}
	select {
	case n.queue <- msg:
	default:
		n.dropped.Add(1)
	}
}

// Dropped — число отброшенных уведомлений.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}

// Close останавливает воркер, дождавшись доставки поставленных сообщений.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() { close(n.done) })
	<-n.stopped
}

func (n *Notifier) run() {
	defer close(n.stopped)
	for {
		select {
		case msg := <-n.queue:
			n.show(msg)
		case <-n.done:
			for {
				select {
				case msg := <-n.queue:
					n.show(msg)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) show(msg string) {
	var display time.Duration
	if n.timeout != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		display = n.timeout(ctx)
		cancel()
	}
	n.logger.Infow("Notification", "message", msg, "display", display)
}
