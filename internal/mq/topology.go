package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeSchedules Exchange = "courier.schedules"
	ExchangeDelay     Exchange = "courier.delay"
	ExchangeDLQ       Exchange = "courier.dlq"
)

// Queues — имена очередей.
const (
	QueueSchedulesDue Queue = "schedules.due"
	QueueDLQSchedules Queue = "dlq.schedules"
)

// Routing keys.
const (
	RoutingKeyDue          RoutingKey = "due"
	RoutingKeyDLQSchedules RoutingKey = "schedules"
)

// DelayTier — очередь ожидания с фиксированным TTL.
//
// Сообщение лежит в очереди tier'а TTL и по истечении уходит через
// dead-letter в courier.schedules/due. TTL задан на очереди, поэтому все
// сообщения в ней истекают по порядку.
type DelayTier struct {
	Name string
	TTL  time.Duration
}

// Queue возвращает имя очереди tier'а.
func (t DelayTier) Queue() Queue {
	return Queue("schedules.delay." + t.Name)
}

// RoutingKey возвращает ключ маршрутизации tier'а в courier.delay.
func (t DelayTier) RoutingKey() RoutingKey {
	return RoutingKey(t.Name)
}

// DelayTiers — доступные задержки по возрастанию.
var DelayTiers = []DelayTier{
	{"1s", time.Second},
	{"5s", 5 * time.Second},
	{"30s", 30 * time.Second},
	{"1m", time.Minute},
	{"5m", 5 * time.Minute},
	{"30m", 30 * time.Minute},
	{"1h", time.Hour},
	{"6h", 6 * time.Hour},
}

// TierFor выбирает наибольший tier не длиннее delay.
// false означает, что задержка меньше минимального tier'а и ждать не нужно.
//
// Длинные задержки проходят несколько tier'ов: получатель видит, что запись
// ещё не наступила, и откладывает её снова на остаток.
func TierFor(delay time.Duration) (DelayTier, bool) {
	var (
		picked DelayTier
		ok     bool
	)
	for _, t := range DelayTiers {
		if t.TTL > delay {
			break
		}
		picked, ok = t, true
	}
	return picked, ok
}

// SetupTopology объявляет exchanges, queues и bindings. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	for _, name := range []Exchange{ExchangeSchedules, ExchangeDelay, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(name), // name
			"direct",     // type
			true,         // durable
			false,        // auto-deleted
			false,        // internal
			false,        // no-wait
			nil,          // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return nil
}

func declareQueues(ch *amqp.Channel) error {
	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// schedules.due — отвергнутые сообщения уходят в DLQ
		{QueueSchedulesDue, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQSchedules),
		}},
		{QueueDLQSchedules, nil},
	}

	for _, t := range DelayTiers {
		queues = append(queues, struct {
			name Queue
			args amqp.Table
		}{t.Queue(), amqp.Table{
			"x-message-ttl":             t.TTL.Milliseconds(),
			"x-dead-letter-exchange":    string(ExchangeSchedules),
			"x-dead-letter-routing-key": string(RoutingKeyDue),
		}})
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

func bindQueues(ch *amqp.Channel) error {
	type binding struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}
	bindings := []binding{
		{QueueSchedulesDue, RoutingKeyDue, ExchangeSchedules},
		{QueueDLQSchedules, RoutingKeyDLQSchedules, ExchangeDLQ},
	}
	for _, t := range DelayTiers {
		bindings = append(bindings, binding{t.Queue(), t.RoutingKey(), ExchangeDelay})
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Courier RabbitMQ Topology:

    courier.delay (direct)
    └── schedules.delay.{1s,5s,30s,1m,5m,30m,1h,6h} [routing: tier name]
            x-message-ttl = tier, dead-letter → courier.schedules/due

    courier.schedules (direct)
    └── schedules.due [routing: due]
            Consumer: courier-scheduler (triggered)
            DLQ: dlq.schedules

    courier.dlq (direct)
    └── dlq.schedules [routing: schedules]
            Manual processing
  `
}
