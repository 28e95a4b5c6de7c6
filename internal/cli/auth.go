package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"relaychat-backend/internal/validate"
)

func (a *app) signupCmd() *cobra.Command {
	var email, password, confirm string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Long:  `Create an account. The form is validated locally before anything is sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fe := validate.Signup(email, password, confirm); len(fe) > 0 {
				fmt.Fprint(a.errOut, RenderFieldErrors(fe))
				return errors.New("please fix the errors above")
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			c := a.client()
			user, err := c.Signup(ctx, email, password, confirm)
			if err != nil {
				return a.apiError(err)
			}
			if _, err := c.Login(ctx, email, password); err != nil {
				return a.apiError(err)
			}
			if err := a.saveToken(c.Token()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render("Account created for "+user.Email+". You are logged in."))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (at least 6 characters)")
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "Password again")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fe := loginErrors(email, password); len(fe) > 0 {
				fmt.Fprint(a.errOut, RenderFieldErrors(fe))
				return errors.New("please fix the errors above")
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			c := a.client()
			resp, err := c.Login(ctx, email, password)
			if err != nil {
				return a.apiError(err)
			}
			if err := a.saveToken(resp.AccessToken); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render("Logged in as "+resp.User.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.saveToken(""); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		},
	}
}

func loginErrors(email, password string) validate.FieldErrors {
	fe := validate.FieldErrors{}
	if msg := validate.Email(email); msg != "" {
		fe[validate.FieldEmail] = msg
	}
	if password == "" {
		fe[validate.FieldPassword] = "Password is required"
	}
	return fe
}
