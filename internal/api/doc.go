// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (сервис планирования, купоны, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (recovery, metrics, logging)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - schedule_handler.go — обработчики для /schedules
//   - coupon_handler.go   — обработчики для /coupons
//
// API предоставляет REST endpoints для планирования публикаций,
// уведомлений и раздачи купонов.
package api
