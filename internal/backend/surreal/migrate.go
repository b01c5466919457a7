package surreal

import (
	"context"
	"fmt"

	surrealdb "github.com/surrealdb/surrealdb.go"

	"github.com/idilsaglam/tada/internal/model"
)

// schema defines the to-do table, the user table and the record access
// method. %[1]s is the to-do table, %[2]s the access method name.
const schema = `
DEFINE TABLE IF NOT EXISTS user SCHEMAFULL
	PERMISSIONS FOR select, update WHERE id = $auth.id, FOR create, delete NONE;
DEFINE FIELD IF NOT EXISTS email ON user TYPE string ASSERT string::is::email($value);
DEFINE FIELD IF NOT EXISTS password ON user TYPE string;
DEFINE INDEX IF NOT EXISTS user_email ON user FIELDS email UNIQUE;

DEFINE TABLE IF NOT EXISTS %[1]s SCHEMAFULL
	PERMISSIONS
		FOR select, update, delete WHERE user_id = <string> $auth.id
		FOR create WHERE $auth.id != NONE AND user_id = <string> $auth.id;
DEFINE FIELD IF NOT EXISTS title ON %[1]s TYPE string;
DEFINE FIELD IF NOT EXISTS completed ON %[1]s TYPE bool DEFAULT false;
DEFINE FIELD IF NOT EXISTS user_id ON %[1]s TYPE string;
DEFINE FIELD IF NOT EXISTS created_at ON %[1]s TYPE datetime DEFAULT time::now() READONLY;
DEFINE INDEX IF NOT EXISTS %[1]s_owner_created ON %[1]s FIELDS user_id, created_at;

DEFINE ACCESS OVERWRITE %[2]s ON DATABASE TYPE RECORD
	SIGNUP (
		CREATE user CONTENT {
			email: $email,
			password: crypto::argon2::generate($password)
		}
	)
	SIGNIN (
		SELECT * FROM user WHERE email = $email AND crypto::argon2::compare(password, $password)
	)
	DURATION FOR TOKEN 1h, FOR SESSION 12h;
`

// Migrate signs in as a root user, defines the schema and drops the root
// session again.
func (c *Client) Migrate(ctx context.Context, user, pass string) error {
	if _, err := c.db.SignIn(ctx, surrealdb.Auth{Username: user, Password: pass}); err != nil {
		return fmt.Errorf("root signin: %w", err)
	}
	defer func() {
		if err := c.db.Invalidate(ctx); err != nil {
			c.log.Warn().Err(err).Msg("invalidate root session")
		}
	}()
	if err := c.db.Use(ctx, c.cfg.Namespace, c.cfg.Database); err != nil {
		return fmt.Errorf("use %s/%s: %w", c.cfg.Namespace, c.cfg.Database, err)
	}
	ddl := fmt.Sprintf(schema, model.Collection, c.cfg.Access)
	if _, err := surrealdb.Query[any](ctx, c.db, ddl, nil); err != nil {
		return fmt.Errorf("define schema: %w", err)
	}
	c.log.Info().
		Str("namespace", c.cfg.Namespace).
		Str("database", c.cfg.Database).
		Str("access", c.cfg.Access).
		Msg("schema defined")
	return nil
}
