package cmd

import (
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/hookdump/hookdump/internal/config"
	"github.com/hookdump/hookdump/internal/storage"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check dump tools, webhook, and archive reachability",
	Long: `Verify that the native dump tools for each engine are present in your
PATH and that the configured webhook and archive target are usable.
Redis needs no external binary; its snapshots are driven over the wire.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hookdump doctor (%s/%s)\n\n", runtime.GOOS, runtime.GOARCH)

		groups := []struct {
			name     string
			binaries []string
		}{
			{"PostgreSQL", []string{"psql", "pg_dump"}},
			{"MySQL", []string{"mysql", "mysqldump"}},
			{"SQLite", []string{"sqlite3"}},
		}

		allOk := true
		for _, group := range groups {
			fmt.Printf("[%s]\n", group.name)
			for _, bin := range group.binaries {
				path, err := exec.LookPath(bin)
				if err != nil {
					fmt.Printf("  [ ] %-12s: NOT FOUND\n", bin)
					allOk = false
				} else {
					fmt.Printf("  [x] %-12s: %s\n", bin, path)
				}
			}
			fmt.Println()
		}

		cfg := config.GetConfig()

		fmt.Println("[Webhook]")
		if cfg.Webhook.URL == "" {
			fmt.Println("  [ ] webhook.url  : NOT SET")
			allOk = false
		} else {
			start := time.Now()
			resp, err := http.Get(cfg.Webhook.URL)
			if err != nil {
				fmt.Printf("  [ ] reachability : FAILED (%v)\n", err)
				allOk = false
			} else {
				resp.Body.Close()
				// A GET on a live webhook returns its metadata; 401/404
				// means the URL or token is wrong.
				if resp.StatusCode < 400 {
					fmt.Printf("  [x] reachability : OK (%s, %s)\n", resp.Status, time.Since(start).Truncate(time.Millisecond))
				} else {
					fmt.Printf("  [ ] reachability : %s\n", resp.Status)
					allOk = false
				}
			}
			fmt.Printf("  [x] max file     : %d bytes\n", cfg.Webhook.MaxFileBytes)
		}
		fmt.Println()

		if cfg.Archive.URI != "" {
			fmt.Println("[Archive]")
			scrubbed := storage.Scrub(cfg.Archive.URI)
			_, err := storage.FromURI(cfg.Archive.URI, storage.StorageOptions{AllowInsecure: cfg.Archive.AllowInsecure})
			if err != nil {
				fmt.Printf("  [ ] %-12s : FAILED (%v)\n", scrubbed, err)
				allOk = false
			} else {
				fmt.Printf("  [x] %-12s : OK\n", scrubbed)
			}
			fmt.Println()
		}

		if allOk {
			fmt.Println("Result: All systems go! Your environment is ready for hookdump.")
		} else {
			fmt.Println("Result: Some checks failed. Install the missing tools or fix the configuration above.")
		}
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
