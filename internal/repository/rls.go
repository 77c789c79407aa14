package repository

import (
	"fmt"

	"github.com/immxrtalbeast/counsel_portal/internal/repository/model"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// policySQL installs Postgres row-level security mirroring access.Evaluate. The
// acting profile is read from the transaction-local setting app.profile_id that
// GormStore publishes when created WithSessionPolicies.
var policySQL = []string{
	`CREATE OR REPLACE FUNCTION app_profile_id() RETURNS uuid
	LANGUAGE sql STABLE AS $$
		SELECT NULLIF(current_setting('app.profile_id', true), '')::uuid
	$$`,

	`CREATE OR REPLACE FUNCTION app_is_party(student uuid, counselor uuid) RETURNS boolean
	LANGUAGE sql STABLE AS $$
		SELECT app_profile_id() IS NOT NULL AND app_profile_id() IN (student, counselor)
	$$`,

	`ALTER TABLE profiles ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE profiles FORCE ROW LEVEL SECURITY`,
	`DROP POLICY IF EXISTS profiles_select ON profiles`,
	`CREATE POLICY profiles_select ON profiles FOR SELECT
		USING (app_profile_id() IS NOT NULL)`,
	`DROP POLICY IF EXISTS profiles_insert ON profiles`,
	`CREATE POLICY profiles_insert ON profiles FOR INSERT
		WITH CHECK (id = app_profile_id())`,
	`DROP POLICY IF EXISTS profiles_update ON profiles`,
	`CREATE POLICY profiles_update ON profiles FOR UPDATE
		USING (id = app_profile_id())
		WITH CHECK (id = app_profile_id())`,

	`ALTER TABLE conversations ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE conversations FORCE ROW LEVEL SECURITY`,
	`DROP POLICY IF EXISTS conversations_select ON conversations`,
	`CREATE POLICY conversations_select ON conversations FOR SELECT
		USING (app_is_party(student_id, counselor_id))`,
	`DROP POLICY IF EXISTS conversations_insert ON conversations`,
	`CREATE POLICY conversations_insert ON conversations FOR INSERT
		WITH CHECK (student_id = app_profile_id())`,
	`DROP POLICY IF EXISTS conversations_update ON conversations`,
	`CREATE POLICY conversations_update ON conversations FOR UPDATE
		USING (app_is_party(student_id, counselor_id))
		WITH CHECK (app_is_party(student_id, counselor_id))`,

	`ALTER TABLE messages ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE messages FORCE ROW LEVEL SECURITY`,
	`DROP POLICY IF EXISTS messages_select ON messages`,
	`CREATE POLICY messages_select ON messages FOR SELECT
		USING (EXISTS (
			SELECT 1 FROM conversations c
			WHERE c.id = conversation_id AND app_is_party(c.student_id, c.counselor_id)
		))`,
	`DROP POLICY IF EXISTS messages_insert ON messages`,
	`CREATE POLICY messages_insert ON messages FOR INSERT
		WITH CHECK (sender_id = app_profile_id() AND EXISTS (
			SELECT 1 FROM conversations c
			WHERE c.id = conversation_id AND app_is_party(c.student_id, c.counselor_id)
		))`,
	`DROP POLICY IF EXISTS messages_update ON messages`,
	`CREATE POLICY messages_update ON messages FOR UPDATE
		USING (sender_id <> app_profile_id() AND EXISTS (
			SELECT 1 FROM conversations c
			WHERE c.id = conversation_id AND app_is_party(c.student_id, c.counselor_id)
		))`,

	`ALTER TABLE appointments ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE appointments FORCE ROW LEVEL SECURITY`,
	`DROP POLICY IF EXISTS appointments_select ON appointments`,
	`CREATE POLICY appointments_select ON appointments FOR SELECT
		USING (app_is_party(student_id, counselor_id))`,
	`DROP POLICY IF EXISTS appointments_insert ON appointments`,
	`CREATE POLICY appointments_insert ON appointments FOR INSERT
		WITH CHECK (student_id = app_profile_id())`,
	`DROP POLICY IF EXISTS appointments_update ON appointments`,
	`CREATE POLICY appointments_update ON appointments FOR UPDATE
		USING (app_is_party(student_id, counselor_id))
		WITH CHECK (app_is_party(student_id, counselor_id))`,

	`ALTER TABLE video_sessions ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE video_sessions FORCE ROW LEVEL SECURITY`,
	`DROP POLICY IF EXISTS video_sessions_all ON video_sessions`,
	`CREATE POLICY video_sessions_all ON video_sessions FOR ALL
		USING (CASE
			WHEN appointment_id IS NOT NULL THEN EXISTS (
				SELECT 1 FROM appointments a
				WHERE a.id = appointment_id AND app_is_party(a.student_id, a.counselor_id)
			)
			ELSE participants @> jsonb_build_array(app_profile_id()::text)
		END)
		WITH CHECK (CASE
			WHEN appointment_id IS NOT NULL THEN EXISTS (
				SELECT 1 FROM appointments a
				WHERE a.id = appointment_id AND app_is_party(a.student_id, a.counselor_id)
			)
			ELSE participants @> jsonb_build_array(app_profile_id()::text)
		END)`,
}

// Migrate creates or updates the portal tables. With enforcePolicies the row-level
// security policies are (re)installed as well; that needs a Postgres database.
func Migrate(db *gorm.DB, enforcePolicies bool) error {
	const op = "repository.Migrate"

	if err := db.AutoMigrate(model.All()...); err != nil {
		return pkgerrors.Wrap(err, op)
	}
	if !enforcePolicies {
		return nil
	}
	if name := db.Dialector.Name(); name != "postgres" {
		return fmt.Errorf("%s: row level security is not supported by %s", op, name)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, stmt := range policySQL {
			if err := tx.Exec(stmt).Error; err != nil {
				return pkgerrors.Wrapf(err, "%s: apply policy", op)
			}
		}
		return nil
	})
}
