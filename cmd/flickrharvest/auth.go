package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"flickrharvest/pkg/auth"
	"flickrharvest/pkg/harvester"
	"flickrharvest/pkg/logger"
	"flickrharvest/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	skipVerify bool
	skipGuide  bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Flickr API keys",
	Long: `Manage stored Flickr API keys.

Keys are stored as named profiles using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - FLICKRHARVEST_API_KEY (read-only)`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store a Flickr API key",
	Long: `Store a Flickr API key under a profile name (default "default").

The key is checked against the API before it is saved unless
--skip-verify is given. The first stored profile becomes the default.`,
	Example: `  # Interactive login
  flickrharvest auth login

  # Store a second key under its own name
  flickrharvest auth login work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <profile>",
	Short: "Remove a stored API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	Long:  `List stored profiles with their keys masked.`,
	RunE:  runList,
}

// useCmd represents the auth use command
var useCmd = &cobra.Command{
	Use:   "use <profile>",
	Short: "Make a profile the default",
	Args:  cobra.ExactArgs(1),
	RunE:  runUse,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(useCmd)

	loginCmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "store the key without checking it against the API")
	loginCmd.Flags().BoolVar(&skipGuide, "skip-guide", false, "do not print the API key guide")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err)
		return err
	}

	name := "default"
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	reader := bufio.NewReader(os.Stdin)

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("\n⚠️  Profile '%s' already exists. Replace its key? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	if !skipGuide {
		auth.ShowAPIKeyGuide(os.Stdout)
	} else {
		auth.ShowQuickGuide(os.Stdout)
	}

	fmt.Print("🔑 Flickr API key (hidden): ")
	key, err := readPassword(reader)
	if err != nil {
		ui.PrintError("Failed to read API key", err)
		return err
	}
	if key == "" {
		return fmt.Errorf("API key is required")
	}

	if !skipVerify {
		fmt.Println("\n📡 Checking the key with Flickr...")
		if err := verifyKey(cmd.Context(), key); err != nil {
			ui.PrintError("Key rejected", err)
			fmt.Println("\nStore it anyway with --skip-verify.")
			return err
		}
		ui.PrintSuccess("Connection OK")
	}

	profile := &auth.Profile{Name: name, APIKey: key}
	if err := manager.Store(profile); err != nil {
		ui.PrintError("Failed to store API key", err)
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Profile saved: %s (%s)", name, auth.MaskKey(key)))

	if profiles, _ := manager.List(); len(profiles) == 1 || manager.DefaultName() == "" {
		if err := manager.SetDefault(name); err == nil {
			fmt.Printf("✅ '%s' is now the default profile\n", name)
		}
	}

	fmt.Println("\n📖 Quick Start:")
	fmt.Println("   $ flickrharvest harvest --west -0.51 --south 51.28 --east 0.33 --north 51.69 \\")
	fmt.Println("         --start 2019-01-01 --end 2020-01-01")
	fmt.Println("\n⚠️  Never share your API key or config files!")
	return nil
}

// verifyKey makes one echo call with key
func verifyKey(ctx context.Context, key string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := harvester.NewClientFactory(cfg, nil, logger.GetLogger())(key)
	return client.CheckCredential(ctx)
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err)
		return err
	}

	name := args[0]
	if err := manager.Delete(name); err != nil {
		ui.PrintError("Failed to remove profile", err)
		return err
	}
	ui.PrintSuccess("Profile removed: " + name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err)
		return err
	}

	profiles, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list profiles", err)
		return err
	}
	if len(profiles) == 0 {
		ui.PrintInfo("No stored profiles", "Use 'flickrharvest auth login' to add one")
		return nil
	}

	def := manager.DefaultName()
	ui.PrintHighlight("Stored Profiles")
	fmt.Println()
	for i, p := range profiles {
		sanitized := auth.SanitizeProfile(p)
		marker := ""
		if p.Name == def {
			marker = " (default)"
		}
		fmt.Printf("%d. %s%s\n", i+1, sanitized.Name, ui.Green(marker))
		fmt.Printf("   API key: %s\n", sanitized.APIKey)
		if !sanitized.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format(time.DateTime))
		}
		fmt.Println()
	}
	return nil
}

func runUse(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err)
		return err
	}

	if err := manager.SetDefault(args[0]); err != nil {
		ui.PrintError("Failed to select profile", err)
		return err
	}
	ui.PrintSuccess("Default profile: " + args[0])
	return nil
}

// readPassword reads a secret from stdin without echoing when stdin is a
// terminal.
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
