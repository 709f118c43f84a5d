package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gobarber/gobarber/internal/domain/session"
	"github.com/gobarber/gobarber/internal/platform/validation"
)

func signinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			p := newPrompter(a.in, a.out)
			if email, err = p.value("E-mail", email); err != nil {
				return err
			}
			if password, err = p.secret("Password", password); err != nil {
				return err
			}

			s, err := a.session.SignIn(cmd.Context(), session.SignInCredentials{Email: email, Password: password})
			if err != nil {
				return formError(a.out, err)
			}
			fmt.Fprintf(a.out, "Welcome, %s\n", s.User.Name)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Account e-mail")
	cmd.Flags().String("password", "", "Account password (prompted when omitted)")
	return cmd
}

func signupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			p := newPrompter(a.in, a.out)
			if name, err = p.value("Name", name); err != nil {
				return err
			}
			if email, err = p.value("E-mail", email); err != nil {
				return err
			}
			if password, err = p.secret("Password", password); err != nil {
				return err
			}

			u, err := a.session.SignUp(cmd.Context(), session.SignUpForm{Name: name, Email: email, Password: password})
			if err != nil {
				return formError(a.out, err)
			}
			fmt.Fprintf(a.out, "Account created for %s. You can now sign in.\n", u.Email)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Full name")
	cmd.Flags().String("email", "", "Account e-mail")
	cmd.Flags().String("password", "", "Account password (prompted when omitted)")
	return cmd
}

func signoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := a.session.SignOut(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out.")
			return nil
		},
	}
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			s, err := a.requireSession()
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("name") && !cmd.Flags().Changed("email") && !cmd.Flags().Changed("password") {
				renderUser(a.out, s.User)
				return nil
			}

			form := session.ProfileForm{Name: s.User.Name, Email: s.User.Email}
			if v, _ := cmd.Flags().GetString("name"); v != "" {
				form.Name = v
			}
			if v, _ := cmd.Flags().GetString("email"); v != "" {
				form.Email = v
			}
			if cmd.Flags().Changed("password") {
				p := newPrompter(a.in, a.out)
				form.Password, _ = cmd.Flags().GetString("password")
				if form.OldPassword, err = p.secret("Current password", flagString(cmd, "old-password")); err != nil {
					return err
				}
				if form.Password, err = p.secret("New password", form.Password); err != nil {
					return err
				}
				if form.PasswordConfirmation, err = p.secret("Confirm new password", flagString(cmd, "password-confirmation")); err != nil {
					return err
				}
			}

			u, err := a.session.UpdateProfile(cmd.Context(), form)
			if err != nil {
				return formError(a.out, err)
			}
			fmt.Fprintln(a.out, "Profile updated.")
			renderUser(a.out, u)
			return nil
		},
	}
	cmd.Flags().String("name", "", "New name")
	cmd.Flags().String("email", "", "New e-mail")
	cmd.Flags().String("password", "", "New password")
	cmd.Flags().String("old-password", "", "Current password, required to change it")
	cmd.Flags().String("password-confirmation", "", "New password again")
	return cmd
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// formError prints per-field validation messages before returning err.
func formError(w io.Writer, err error) error {
	var verr *validation.Error
	if !errors.As(err, &verr) {
		return err
	}
	fields := make([]string, 0, len(verr.Fields))
	for f := range verr.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(w, "  %s: %s\n", f, verr.Fields[f])
	}
	return err
}

func renderUser(w io.Writer, u session.User) {
	fmt.Fprintf(w, "Name:   %s\n", u.Name)
	fmt.Fprintf(w, "E-mail: %s\n", u.Email)
	if u.AvatarURL.Valid && u.AvatarURL.String != "" {
		fmt.Fprintf(w, "Avatar: %s\n", u.AvatarURL.String)
	}
}
