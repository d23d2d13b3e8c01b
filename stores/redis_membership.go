package stores

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/permit"
)

// RedisMembershipStore keeps account state in Redis hashes:
// user hash {prefix}:user:{id} holds "active" and "superuser";
// membership hash {prefix}:member:{id} maps tenant -> "active" | "locked".
type RedisMembershipStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisMembershipStore(client redis.UniversalClient, prefix string) *RedisMembershipStore {
	if prefix == "" {
		prefix = "permit"
	}
	return &RedisMembershipStore{client: client, prefix: prefix}
}

func (r *RedisMembershipStore) userKey(userID string) string {
	return fmt.Sprintf("%s:user:%s", r.prefix, userID)
}

func (r *RedisMembershipStore) memberKey(userID string) string {
	return fmt.Sprintf("%s:member:%s", r.prefix, userID)
}

func (r *RedisMembershipStore) UpsertUser(ctx context.Context, userID string, active, superuser bool) error {
	return r.client.HSet(ctx, r.userKey(userID), "active", boolToInt(active), "superuser", boolToInt(superuser)).Err()
}

func (r *RedisMembershipStore) AddMembership(ctx context.Context, userID, tenantID string) error {
	return r.client.HSet(ctx, r.memberKey(userID), tenantID, "active").Err()
}

func (r *RedisMembershipStore) RemoveMembership(ctx context.Context, userID, tenantID string) error {
	return r.client.HDel(ctx, r.memberKey(userID), tenantID).Err()
}

func (r *RedisMembershipStore) SetLocked(ctx context.Context, userID, tenantID string, locked bool) error {
	state := "active"
	if locked {
		state = "locked"
	}
	return r.client.HSet(ctx, r.memberKey(userID), tenantID, state).Err()
}

// ListTenants returns the tenants the user belongs to.
func (r *RedisMembershipStore) ListTenants(ctx context.Context, userID string) ([]string, error) {
	return r.client.HKeys(ctx, r.memberKey(userID)).Result()
}

func (r *RedisMembershipStore) Check(ctx context.Context, userID, tenantID string) (permit.MembershipStatus, error) {
	var st permit.MembershipStatus
	pipe := r.client.Pipeline()
	user := pipe.HGetAll(ctx, r.userKey(userID))
	member := pipe.HGet(ctx, r.memberKey(userID), tenantID)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return st, err
	}
	fields, err := user.Result()
	if err != nil {
		return st, err
	}
	if len(fields) == 0 {
		return st, nil
	}
	st.Exists = true
	st.Active = fields["active"] == "1"
	st.Superuser = fields["superuser"] == "1"

	state, err := member.Result()
	switch {
	case err == redis.Nil:
		return st, nil
	case err != nil:
		return st, err
	}
	st.Member = true
	st.Locked = state == "locked"
	return st, nil
}
