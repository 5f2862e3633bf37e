package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/aotms/lms-backend/supabase"
)

// addUser creates a confirmed account through the admin API and upserts its
// role assignment. Runs on the service credential only.
func (cli *commandLine) addUser(email, name, pwd, role string) error {
	ctx := context.Background()

	params := supabase.AdminCreateUserParams{
		Email:        email,
		Password:     pwd,
		EmailConfirm: true,
	}
	if name != "" {
		params.UserMetadata = map[string]interface{}{"full_name": name}
	}
	usr, err := cli.supa.AdminCreateUser(ctx, params)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}

	if _, err := cli.supa.From("user_roles").Upsert(map[string]interface{}{
		"user_id": usr.ID,
		"role":    role,
	}).Execute(ctx); err != nil {
		return errors.Wrap(err, "assigning role")
	}
	return nil
}
