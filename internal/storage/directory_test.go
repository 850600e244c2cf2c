package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whitover/whitoverbot/internal/domain"
)

func TestDirectoryRoleOf(t *testing.T) {
	ctx := context.Background()
	d := testDirectory(t)
	seedResidents(t, d,
		ImportedRow{ID: "100", Nick: "Steve", ChatID: "42", Resident: true},
	)

	role, err := d.RoleOf(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleResident, role)

	_, err = d.RoleOf(ctx, "99")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDirectoryBindExternalIdentity(t *testing.T) {
	ctx := context.Background()
	d := testDirectory(t)
	seedResidents(t, d,
		ImportedRow{ID: "100", Nick: "Steve", Resident: true},
		ImportedRow{ID: "101", Nick: "Alex", Resident: true},
	)

	require.NoError(t, d.BindExternalIdentity(ctx, "100", "42"))

	res, err := d.ResidentByChat(ctx, "42")
	require.NoError(t, err)
	assert.EqualValues(t, "100", res.ID)

	// the binding is one-time
	err = d.BindExternalIdentity(ctx, "100", "43")
	assert.ErrorIs(t, err, domain.ErrAlreadyBound)

	// and one chat identity cannot claim a second resident
	err = d.BindExternalIdentity(ctx, "101", "42")
	assert.ErrorIs(t, err, domain.ErrAlreadyBound)

	err = d.BindExternalIdentity(ctx, "404", "50")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDirectorySetRole(t *testing.T) {
	ctx := context.Background()
	d := testDirectory(t)
	seedResidents(t, d, ImportedRow{ID: "100", Nick: "Steve", Resident: true})

	require.NoError(t, d.SetRole(ctx, "100", domain.RoleBanker))
	res, err := d.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleBanker, res.Role)

	assert.ErrorIs(t, d.SetRole(ctx, "100", "emperor"), domain.ErrValidation)
	assert.ErrorIs(t, d.SetRole(ctx, "404", domain.RoleAdmin), domain.ErrNotFound)
}

func TestDirectorySearch(t *testing.T) {
	ctx := context.Background()
	d := testDirectory(t)
	seedResidents(t, d,
		ImportedRow{ID: "100", Nick: "Steve", Resident: true},
		ImportedRow{ID: "101", Nick: "SteveJr", Resident: true},
		ImportedRow{ID: "102", Nick: "Alex", Resident: true},
	)

	byID, err := d.Search(ctx, "102")
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "Alex", byID[0].Nick)

	byNick, err := d.Search(ctx, "steve")
	require.NoError(t, err)
	assert.Len(t, byNick, 2, "nickname match is a substring match")

	none, err := d.Search(ctx, "zombie")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDirectoryFindByNickname(t *testing.T) {
	ctx := context.Background()
	d := testDirectory(t)
	seedResidents(t, d,
		ImportedRow{ID: "100", Nick: "Steve", Discord: "steve#1", Resident: true},
		ImportedRow{ID: "101", Nick: "Alex", Discord: "alex#2", Resident: true},
	)

	exact, partial, err := d.FindByNickname(ctx, "Steve", "steve#1")
	require.NoError(t, err)
	assert.Len(t, exact, 1)
	assert.Len(t, partial, 1)

	exact, partial, err = d.FindByNickname(ctx, "Steve", "wrong#9")
	require.NoError(t, err)
	assert.Empty(t, exact)
	assert.Len(t, partial, 1, "one matching field is a partial match")

	exact, partial, err = d.FindByNickname(ctx, "Nobody", "wrong#9")
	require.NoError(t, err)
	assert.Empty(t, exact)
	assert.Empty(t, partial)
}

func TestDirectoryReplaceImported(t *testing.T) {
	ctx := context.Background()
	d := testDirectory(t)
	seedResidents(t, d,
		ImportedRow{ID: "100", Nick: "Steve", Resident: true},
		ImportedRow{ID: "101", Nick: "Alex", Resident: true},
	)
	require.NoError(t, d.SetRole(ctx, "100", domain.RoleAdmin))
	require.NoError(t, d.BindExternalIdentity(ctx, "100", "42"))

	// resync: 100 stays, 101 disappears, 102 is new, 103 is not a resident
	seedResidents(t, d,
		ImportedRow{ID: "100", Nick: "SteveRenamed", Resident: true},
		ImportedRow{ID: "102", Nick: "Zoe", Resident: true},
		ImportedRow{ID: "103", Nick: "Visitor", Resident: false},
	)

	res, err := d.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "SteveRenamed", res.Nick, "feed owns the nickname")
	assert.Equal(t, domain.RoleAdmin, res.Role, "granted role survives the resync")
	assert.EqualValues(t, "42", res.ChatID, "chat binding survives the resync")

	_, err = d.Get(ctx, "101")
	assert.ErrorIs(t, err, domain.ErrNotFound, "absent residents are dropped")

	_, err = d.Get(ctx, "103")
	assert.ErrorIs(t, err, domain.ErrNotFound, "non-resident rows are skipped")

	_, err = d.Get(ctx, "102")
	assert.NoError(t, err)
}

func TestDirectoryList(t *testing.T) {
	ctx := context.Background()
	d := testDirectory(t)
	seedResidents(t, d,
		ImportedRow{ID: "100", Nick: "Charlie", Resident: true},
		ImportedRow{ID: "101", Nick: "Alice", Resident: true},
		ImportedRow{ID: "102", Nick: "Bob", Resident: true},
	)

	page1, total, err := d.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page1, 2)
	assert.Equal(t, "Alice", page1[0].Nick)
	assert.Equal(t, "Bob", page1[1].Nick)

	page2, _, err := d.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "Charlie", page2[0].Nick)
}

func TestDirectoryAdminIdentities(t *testing.T) {
	ctx := context.Background()
	d := testDirectory(t)
	seedResidents(t, d,
		ImportedRow{ID: "100", Nick: "Boss", ChatID: "42", Resident: true},
		ImportedRow{ID: "101", Nick: "Shadow", Resident: true},
	)
	require.NoError(t, d.SetRole(ctx, "100", domain.RoleAdmin))
	require.NoError(t, d.SetRole(ctx, "101", domain.RoleAdmin))

	admins, err := d.AdminIdentities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ChatID{"42"}, admins, "unbound admins have nowhere to be notified")
}
