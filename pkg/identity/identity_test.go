package identity

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devqa/devqa.go/internal/testenv"
	"github.com/devqa/devqa.go/pkg/auth"
	"github.com/devqa/devqa.go/pkg/constants"
)

func TestResolveCreatesOnceAndCaches(t *testing.T) {
	ctx := context.Background()
	env := testenv.NewStore(t)
	r := New(env.Conn, constants.TableUsers, testenv.Logger())

	id, err := r.Resolve(ctx, auth.Claims{Email: "Ada@Example.com", Name: "Ada"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	fields := env.Fields(constants.TableUsers, id)
	assert.Equal(t, "ada@example.com", fields["Email"])
	assert.Equal(t, "Ada", fields["Name"])
	assert.Equal(t, 0.0, fields["Points"])

	again, err := r.Resolve(ctx, auth.Claims{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, env.Requests(constants.TableUsers, "list"))
	assert.Equal(t, 1, env.Requests(constants.TableUsers, "create"))
}

func TestResolveFindsExistingCaseInsensitively(t *testing.T) {
	env := testenv.NewStore(t)
	existing := env.Insert(constants.TableUsers, map[string]any{"Email": "GRACE@navy.mil", "Name": "Grace", "Points": 40})
	r := New(env.Conn, "", nil)

	id, err := r.Resolve(context.Background(), auth.Claims{Email: "grace@NAVY.mil"})
	require.NoError(t, err)
	assert.Equal(t, existing, id)
	assert.Equal(t, 0, env.Requests(constants.TableUsers, "create"))
}

func TestResolveWithoutEmail(t *testing.T) {
	env := testenv.NewStore(t)
	r := New(env.Conn, "", nil)

	_, err := r.Resolve(context.Background(), auth.Claims{Name: "nobody"})
	assert.ErrorIs(t, err, constants.ErrIdentityUnavailable)
	assert.Equal(t, 0, env.Requests(constants.TableUsers, "list"))
}

func TestConcurrentResolveCreatesOneRecord(t *testing.T) {
	env := testenv.NewStore(t)
	r := New(env.Conn, "", nil)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.Resolve(context.Background(), auth.Claims{Email: "ada@example.com"})
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, env.Requests(constants.TableUsers, "create"))
}

func TestForgetOnSignOut(t *testing.T) {
	ctx := context.Background()
	env := testenv.NewStore(t)
	r := New(env.Conn, "", nil)
	p := auth.NewStaticProvider()
	r.Watch(p)

	_, err := r.Resolve(ctx, auth.Claims{Email: "ada@example.com"})
	require.NoError(t, err)
	p.SignOut()
	_, err = r.Resolve(ctx, auth.Claims{Email: "ada@example.com"})
	require.NoError(t, err)

	assert.Equal(t, 2, env.Requests(constants.TableUsers, "list"))
	assert.Equal(t, 1, env.Requests(constants.TableUsers, "create"))
}
