package db

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/yieldwise/internal/chat"
	"github.com/suPer8Hu/yieldwise/internal/farm"
	"github.com/suPer8Hu/yieldwise/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	require.NoError(t, Ping(gdb))
	return gdb
}

func TestMigrate_ForeignKeys(t *testing.T) {
	gdb := openTestDB(t)

	want := map[string]string{
		"farm_plans":             "users",
		"diagnoses":              "users",
		"chat_history":           "farm_plans",
		"diagnoses_chat_history": "diagnoses",
	}
	for table, parent := range want {
		var parents []string
		require.NoError(t, gdb.Raw(`SELECT "table" FROM pragma_foreign_key_list(?)`, table).Scan(&parents).Error)
		assert.Equal(t, []string{parent}, parents, table)
	}
}

func TestMigrate_RejectsOrphansAndCascades(t *testing.T) {
	gdb := openTestDB(t)

	assert.Error(t, gdb.Create(&chat.PlanMessage{PlanID: 99999, Role: chat.RoleUser, Content: "q"}).Error)
	assert.Error(t, gdb.Create(&chat.DiagnosisMessage{DiagnosisID: 99999, Role: chat.RoleUser, Content: "q"}).Error)
	missing := uint64(4242)
	assert.Error(t, gdb.Create(&farm.Plan{UserID: &missing, Location: "Kano", PlanHTML: "<p></p>"}).Error)

	u := models.User{Email: "a@example.com", Name: "A", PasswordHash: "x"}
	require.NoError(t, gdb.Create(&u).Error)
	p := farm.Plan{UserID: &u.ID, Location: "Kano", PlanHTML: "<p></p>"}
	require.NoError(t, gdb.Create(&p).Error)
	require.NoError(t, gdb.Create(&chat.PlanMessage{PlanID: p.ID, Role: chat.RoleUser, Content: "q"}).Error)

	// a guest plan has no owner yet
	require.NoError(t, gdb.Create(&farm.Plan{Location: "Jos", PlanHTML: "<p></p>"}).Error)

	require.NoError(t, gdb.Exec("DELETE FROM farm_plans WHERE id = ?", p.ID).Error)
	var n int64
	require.NoError(t, gdb.Model(&chat.PlanMessage{}).Where("plan_id = ?", p.ID).Count(&n).Error)
	assert.Zero(t, n)
}
