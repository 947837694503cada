// Package memrepo — in-memory реализация репозиториев.
//
// Повторяет контракты пакета repo: compare-and-set от pending, savepoint
// при вложенном WithinTx, откат при ошибке. Транзакции сериализуются одним
// мьютексом, поэтому конкурирующая отмена ждёт завершения выполнения так же,
// как UPDATE ждёт строковую блокировку в Postgres.
//
// Используется в тестах движков, fan-out и сервиса.
package memrepo

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/Courier/internal/domain"
)

type txKey struct{}

// DB — общее состояние всех in-memory репозиториев.
type DB struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	schedules     map[uuid.UUID]domain.ScheduleRecord
	posts         map[int64]domain.Post
	notifications map[int64]domain.Notification
	levels        map[int64]domain.MembershipLevel
	members       map[int64]domain.Member
	coupons       map[int64]domain.Coupon
	grants        []domain.CouponGrant
}

// New создаёт пустую базу.
func New() *DB {
	return &DB{state: &state{
		schedules:     make(map[uuid.UUID]domain.ScheduleRecord),
		posts:         make(map[int64]domain.Post),
		notifications: make(map[int64]domain.Notification),
		levels:        make(map[int64]domain.MembershipLevel),
		members:       make(map[int64]domain.Member),
		coupons:       make(map[int64]domain.Coupon),
	}}
}

func (s *state) clone() *state {
	c := &state{
		schedules:     make(map[uuid.UUID]domain.ScheduleRecord, len(s.schedules)),
		posts:         make(map[int64]domain.Post, len(s.posts)),
		notifications: make(map[int64]domain.Notification, len(s.notifications)),
		levels:        make(map[int64]domain.MembershipLevel, len(s.levels)),
		members:       make(map[int64]domain.Member, len(s.members)),
		coupons:       make(map[int64]domain.Coupon, len(s.coupons)),
		grants:        slices.Clone(s.grants),
	}
	for k, v := range s.schedules {
		c.schedules[k] = v
	}
	for k, v := range s.posts {
		c.posts[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.levels {
		c.levels[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	return c
}

// WithinTx выполняет fn под эксклюзивной блокировкой базы.
// Вложенный вызов работает как savepoint.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.inTx(ctx) {
		snap := db.state.clone()
		if err := fn(ctx); err != nil {
			db.state = snap
			return err
		}
		return nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	snap := db.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		db.state = snap
		return err
	}
	return nil
}

func (db *DB) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*DB)
	return ok && owner == db
}

// lock берёт мьютекс, если вызов не внутри транзакции этой базы.
func (db *DB) lock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

// Schedules возвращает репозиторий записей расписания.
func (db *DB) Schedules() *ScheduleRepo { return &ScheduleRepo{db: db} }

// Posts возвращает репозиторий постов.
func (db *DB) Posts() *PostRepo { return &PostRepo{db: db} }

// Notifications возвращает репозиторий уведомлений.
func (db *DB) Notifications() *NotificationRepo { return &NotificationRepo{db: db} }

// Members возвращает репозиторий участников.
func (db *DB) Members() *MemberRepo { return &MemberRepo{db: db} }

// Coupons возвращает репозиторий купонов.
func (db *DB) Coupons() *CouponRepo { return &CouponRepo{db: db} }

// ContentLookup возвращает проверку существования контента.
func (db *DB) ContentLookup() *ContentLookup { return &ContentLookup{db: db} }

// --- Seeding ---

// AddPost добавляет пост.
func (db *DB) AddPost(p domain.Post) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.posts[p.ID] = p
}

// DeletePost удаляет пост.
func (db *DB) DeletePost(id int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.state.posts, id)
}

// AddNotification добавляет уведомление.
func (db *DB) AddNotification(n domain.Notification) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.notifications[n.ID] = n
}

// AddLevel добавляет уровень.
func (db *DB) AddLevel(l domain.MembershipLevel) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.levels[l.ID] = l
}

// AddMember добавляет участника.
func (db *DB) AddMember(m domain.Member) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.members[m.ID] = m
}

// AddCoupon добавляет купон.
func (db *DB) AddCoupon(c domain.Coupon) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.coupons[c.ID] = c
}

// AddGrant добавляет грант в обход проверок.
func (db *DB) AddGrant(g domain.CouponGrant) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.grants = append(db.state.grants, g)
}
