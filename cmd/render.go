package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/contactform/internal/renderer"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Write the contact page HTML",
	Long: `Render the contact page with an empty form and write it to stdout or a
file. Without --live the page carries no scripts, which is useful for
checking markup and styles.

Examples:
  contactform render --site-key KEY > contact.html
  contactform render --profile ./profile.yml -o contact.html`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().String("site-key", "", "reCAPTCHA site key")
	renderCmd.Flags().String("profile", "profile.yml", "Profile file with social links")
	renderCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
	renderCmd.Flags().String("title", "Contact", "Page title")
	renderCmd.Flags().Bool("live", false, "Include the live session scripts")

	AddFlagValidation(renderCmd, "profile", ValidateFileExists)

	bindFlags(renderCmd, map[string]string{
		"site-key": "recaptcha.site_key",
		"profile":  "profile.path",
	})
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	profiles, err := loadProfiles(cfg, cfg.Logger())
	if err != nil {
		return configError(err)
	}

	title, _ := cmd.Flags().GetString("title")
	live, _ := cmd.Flags().GetBool("live")
	output, _ := cmd.Flags().GetString("output")

	var w io.Writer = cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	page := renderer.Page(
		renderer.PageProps{Title: title, Live: live},
		renderer.ContactBody(renderer.Props{
			SiteKey:  cfg.Recaptcha.SiteKey,
			Social:   profiles.Social(),
			Position: cfg.ToastPosition(),
		}),
	)
	if err := page.Render(cmd.Context(), w); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}
