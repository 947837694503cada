package target

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/repo/memrepo"
)

func ptr[T any](v T) *T { return &v }

func seed() *memrepo.DB {
	db := memrepo.New()
	db.AddLevel(domain.MembershipLevel{ID: 1, Name: "silver", IsActive: true})
	db.AddLevel(domain.MembershipLevel{ID: 2, Name: "gold", IsActive: true})
	db.AddLevel(domain.MembershipLevel{ID: 3, Name: "legacy", IsActive: false})

	db.AddMember(domain.Member{ID: 10, LevelID: ptr(int64(1)), IsActive: true})
	db.AddMember(domain.Member{ID: 11, LevelID: ptr(int64(2)), IsActive: true})
	db.AddMember(domain.Member{ID: 12, LevelID: ptr(int64(2)), IsActive: true})
	db.AddMember(domain.Member{ID: 13, LevelID: ptr(int64(2)), IsActive: false})
	db.AddMember(domain.Member{ID: 14, IsActive: true})
	return db
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(seed().Members())
	ctx := context.Background()

	tests := []struct {
		name       string
		descriptor string
		want       []int64
		invalid    bool
	}{
		{name: "all active members", descriptor: "all", want: []int64{10, 11, 12, 14}},
		{name: "level skips inactive members", descriptor: "2", want: []int64{11, 12}},
		{name: "inactive level", descriptor: "3", invalid: true},
		{name: "missing level", descriptor: "99", invalid: true},
		{name: "garbage", descriptor: "platinum", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveDescriptor(ctx, tt.descriptor)
			if tt.invalid {
				assert.ErrorIs(t, err, domain.ErrInvalidTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_EmptyCohort(t *testing.T) {
	db := memrepo.New()
	db.AddLevel(domain.MembershipLevel{ID: 1, IsActive: true})

	got, err := NewResolver(db.Members()).Resolve(context.Background(), domain.MembersOfLevel(1))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolver_UnknownKind(t *testing.T) {
	_, err := NewResolver(memrepo.New().Members()).Resolve(context.Background(), domain.Target{})
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)
}
