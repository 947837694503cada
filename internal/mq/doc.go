// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go     — соединение с автоматическим переподключением
//   - topology.go       — exchanges, queues, bindings и tier'ы задержки
//   - publisher.go      — публикация сообщений
//   - consumer.go       — потребление сообщений с ack/nack
//   - schedule_queue.go — очередь отложенных заданий для triggered-движка
//
// Отложенное задание публикуется в очередь ожидания подходящего tier'а
// (courier.delay) и по истечении TTL через dead-letter попадает в
// schedules.due. Сообщение несёт только schedule_id.
//
// Типы сообщений:
//   - schedule.due — запись расписания пора выполнить
package mq
