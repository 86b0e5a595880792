package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrlokans/bookhive/internal/auth"
	"github.com/mrlokans/bookhive/internal/config"
	"github.com/mrlokans/bookhive/internal/database"
	"github.com/mrlokans/bookhive/internal/entities"
)

// CreateUserOptions holds the flags of create-user.
type CreateUserOptions struct {
	Name     string
	Email    string
	Role     string
	Password string
}

// passwordReader reads a password without echo when stdin is a terminal.
type passwordReader func(prompt string) (string, error)

func newCreateUserCommand() *cobra.Command {
	opts := &CreateUserOptions{}

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account directly in the database",
		Long: "Create an account directly in the database.\n\n" +
			"The password is prompted for when --password is omitted. Use --role admin\n" +
			"to create a librarian whose stored role is admin.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewConfig()
			db, err := database.NewDatabase(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			service := auth.NewService(db.DB, cfg.Auth, cfg.Admin)
			read := terminalPasswordReader(cmd.InOrStdin(), cmd.ErrOrStderr())
			user, err := runCreateUser(service, opts, read)
			if err != nil {
				return err
			}
			cmd.Printf("Created %s user %s (id %d)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "login email (required)")
	cmd.Flags().StringVar(&opts.Role, "role", string(entities.UserRoleStudent), "user, student or admin")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password; prompted for when empty")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runCreateUser(service *auth.Service, opts *CreateUserOptions, read passwordReader) (*entities.User, error) {
	role := entities.UserRole(strings.ToLower(strings.TrimSpace(opts.Role)))
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", opts.Role)
	}

	password := opts.Password
	if password == "" {
		first, err := read("Password: ")
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		second, err := read("Confirm password: ")
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		if first != second {
			return nil, errors.New("passwords do not match")
		}
		password = first
	}

	return service.CreateUser(opts.Name, opts.Email, password, role)
}

// terminalPasswordReader masks input on a terminal and falls back to reading
// lines when stdin is piped.
func terminalPasswordReader(in io.Reader, out io.Writer) passwordReader {
	lines := bufio.NewReader(in)
	return func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			raw, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(out)
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(string(raw)), nil
		}
		line, err := lines.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}
