package rabbitmq_common

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrShuttingDown = errors.New("rabbitmq: connection manager is shutting down")
	ErrNotConnected = errors.New("rabbitmq: not connected")
)

// ConnectionState - состояние соединения компонента с брокером.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// SetupFunc вызывается на каждом новом канале до перехода в StateConnected:
// объявление топологии, QoS, регистрация потребителя и т.д.
type SetupFunc func(ch Channel) error

// ManagerConfig - конфигурация менеджера соединения одного компонента.
type ManagerConfig struct {
	Config
	Name    string // имя компонента для логов (publisher, consumer)
	Backoff BackoffConfig
	Setup   SetupFunc
	Dial    DialFunc
	Logger  Logger
}

type lostSignal struct {
	generation uint64
	origin     string
}

// connectAttempt - единственная попытка подключения, которую разделяют все ожидающие.
type connectAttempt struct {
	done chan struct{}
	err  error
}

// ConnectionManager владеет соединением и каналом одного компонента.
//
// Переходы Disconnected -> Connecting -> Connected выполняются только самим менеджером.
// Слушатели NotifyClose ничего не меняют напрямую: они отправляют сигнал в канал lost,
// а супервизор решает, нужно ли переподключаться. Сигналы от старых поколений
// соединения и повторные сигналы во время Connecting игнорируются.
type ConnectionManager struct {
	cfg     ManagerConfig
	backoff BackoffConfig
	Logger  Logger

	mu         sync.Mutex
	state      ConnectionState
	conn       Connection
	channel    Channel
	generation uint64
	attempt    *connectAttempt
	closing    bool

	lost      chan lostSignal
	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewConnectionManager создает менеджер. Соединение устанавливается лениво,
// при первом вызове EnsureConnected.
func NewConnectionManager(cfg ManagerConfig) (*ConnectionManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Dial == nil {
		cfg.Dial = DialAMQP
	}
	if cfg.Name == "" {
		cfg.Name = "rabbitmq"
	}

	m := &ConnectionManager{
		cfg:      cfg,
		backoff:  cfg.Backoff.withDefaults(),
		Logger:   loggerOrNoop(cfg.Logger),
		lost:     make(chan lostSignal),
		shutdown: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.supervise()
	return m, nil
}

// State возвращает текущее состояние.
func (m *ConnectionManager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EnsureConnected возвращает живой канал. Если соединения нет, запускает попытку
// подключения (или присоединяется к уже идущей) и ждет ее завершения либо отмены ctx.
// Попытка продолжается в фоне и после отмены ctx.
func (m *ConnectionManager) EnsureConnected(ctx context.Context) (Channel, error) {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if m.state == StateConnected {
		ch := m.channel
		m.mu.Unlock()
		return ch, nil
	}
	attempt := m.startAttemptLocked()
	m.mu.Unlock()

	select {
	case <-attempt.done:
		if attempt.err != nil {
			return nil, attempt.err
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.state == StateConnected {
			return m.channel, nil
		}
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Channel возвращает текущий канал без ожидания.
func (m *ConnectionManager) Channel() (Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected {
		return nil, false
	}
	return m.channel, true
}

// ReportLost сообщает супервизору, что канал ch больше не пригоден
// (например, сервер отменил подписку). Игнорируется, если ch уже не текущий.
func (m *ConnectionManager) ReportLost(ch Channel, origin string) {
	m.mu.Lock()
	if m.closing || m.state != StateConnected || m.channel != ch {
		m.mu.Unlock()
		return
	}
	gen := m.generation
	m.mu.Unlock()

	m.signal(lostSignal{generation: gen, origin: origin})
}

// Close поднимает флаг остановки, будит ожидающие ретраи и закрывает канал и соединение.
// Ошибки закрытия не возвращаются.
func (m *ConnectionManager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closing = true
		conn, ch := m.conn, m.channel
		m.conn, m.channel = nil, nil
		m.state = StateDisconnected
		m.mu.Unlock()

		close(m.shutdown)
		m.closeHandles(ch, conn)
		m.wg.Wait()
		m.Logger.Info("RabbitMQ connection manager closed", "component", m.cfg.Name)
	})
	return nil
}

func (m *ConnectionManager) signal(sig lostSignal) {
	select {
	case m.lost <- sig:
	case <-m.shutdown:
	}
}

// supervise - единственный владелец реакции на потерю соединения.
func (m *ConnectionManager) supervise() {
	defer m.wg.Done()
	for {
		select {
		case sig := <-m.lost:
			m.handleLost(sig)
		case <-m.shutdown:
			return
		}
	}
}

func (m *ConnectionManager) handleLost(sig lostSignal) {
	m.mu.Lock()
	if m.closing || sig.generation != m.generation || m.state != StateConnected {
		m.mu.Unlock()
		m.Logger.Debug("Ignoring stale connection-lost signal",
			"component", m.cfg.Name,
			"origin", sig.origin,
			"signal_generation", sig.generation,
		)
		return
	}

	conn, ch := m.conn, m.channel
	m.conn, m.channel = nil, nil
	m.state = StateDisconnected
	m.startAttemptLocked()
	m.mu.Unlock()

	m.Logger.Warn("RabbitMQ connection lost, reconnecting",
		"component", m.cfg.Name,
		"origin", sig.origin,
		"generation", sig.generation,
	)
	// Один из хэндлов может быть еще открыт (закрылся только канал).
	m.closeHandles(ch, conn)
}

// startAttemptLocked вызывается под m.mu.
func (m *ConnectionManager) startAttemptLocked() *connectAttempt {
	if m.attempt != nil {
		return m.attempt
	}
	a := &connectAttempt{done: make(chan struct{})}
	m.attempt = a
	m.state = StateConnecting

	m.wg.Add(1)
	go m.connectWithRetry(a)
	return a
}

func (m *ConnectionManager) connectWithRetry(a *connectAttempt) {
	defer m.wg.Done()
	defer close(a.done)

	delay := m.backoff.Initial
	for attemptNo := 1; ; attemptNo++ {
		if m.isClosing() {
			m.abandonAttempt(a)
			return
		}

		m.Logger.Debug("Connecting to RabbitMQ", "component", m.cfg.Name, "attempt", attemptNo)
		conn, ch, err := m.connectOnce()
		if err == nil {
			m.commitAttempt(a, conn, ch)
			return
		}

		m.Logger.Warn("RabbitMQ connection attempt failed, retrying",
			"component", m.cfg.Name,
			"attempt", attemptNo,
			"retry_in", delay.String(),
			"error", err.Error(),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-m.shutdown:
			timer.Stop()
			m.abandonAttempt(a)
			return
		}
		delay = m.backoff.Next(delay)
	}
}

func (m *ConnectionManager) connectOnce() (Connection, Channel, error) {
	conn, err := m.cfg.Dial(m.cfg.URL)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		m.closeHandles(nil, conn)
		return nil, nil, err
	}

	if m.cfg.Setup != nil {
		if err := m.cfg.Setup(ch); err != nil {
			m.closeHandles(ch, conn)
			return nil, nil, err
		}
	}
	return conn, ch, nil
}

func (m *ConnectionManager) commitAttempt(a *connectAttempt, conn Connection, ch Channel) {
	m.mu.Lock()
	if m.attempt == a {
		m.attempt = nil
	}
	if m.closing {
		m.state = StateDisconnected
		a.err = ErrShuttingDown
		m.mu.Unlock()
		m.closeHandles(ch, conn)
		return
	}

	m.generation++
	gen := m.generation
	m.conn, m.channel = conn, ch
	m.state = StateConnected

	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	m.wg.Add(2)
	go m.listen(gen, "connection", connClosed)
	go m.listen(gen, "channel", chClosed)
	m.mu.Unlock()

	m.Logger.Info("Connected to RabbitMQ", "component", m.cfg.Name, "generation", gen)
}

func (m *ConnectionManager) abandonAttempt(a *connectAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempt == a {
		m.attempt = nil
		if m.state == StateConnecting {
			m.state = StateDisconnected
		}
	}
	a.err = ErrShuttingDown
}

// listen ждет закрытия соединения или канала и только сигналит супервизору.
func (m *ConnectionManager) listen(gen uint64, origin string, notify <-chan *amqp.Error) {
	defer m.wg.Done()

	amqpErr, ok := <-notify
	if ok && amqpErr != nil {
		m.Logger.Warn("RabbitMQ "+origin+" closed unexpectedly",
			"component", m.cfg.Name,
			"generation", gen,
			"code", amqpErr.Code,
			"reason", amqpErr.Reason,
		)
	}
	m.signal(lostSignal{generation: gen, origin: origin})
}

func (m *ConnectionManager) isClosing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closing
}

// closeHandles закрывает канал и соединение, проглатывая ошибки.
func (m *ConnectionManager) closeHandles(ch Channel, conn Connection) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			m.Logger.Debug("Ignoring channel close error", "component", m.cfg.Name, "error", err.Error())
		}
	}
	if conn != nil && !conn.IsClosed() {
		if err := conn.Close(); err != nil {
			m.Logger.Debug("Ignoring connection close error", "component", m.cfg.Name, "error", err.Error())
		}
	}
}
