package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pagecast/pagecast/internal/config"
)

var surfacesCmd = &cobra.Command{
	Use:   "surfaces",
	Short: "Manage the surface store offline",
	Long: `Inspect and edit the persisted surface list without a running server.

Changes made here are picked up the next time the server starts; they do
not affect a server that is already running.`,
}

var surfacesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored surfaces",
	Example: `  # List surfaces in table format (default)
  pagecast surfaces list

  # List surfaces in JSON format
  pagecast surfaces list --format json`,
	RunE: runSurfacesList,
}

var surfacesAddCmd = &cobra.Command{
	Use:   "add URL",
	Short: "Add a surface to the store",
	Example: `  # Add a surface with defaults
  pagecast surfaces add https://example.com/dashboard

  # Add a 1080p surface at 60 fps
  pagecast surfaces add https://example.com/wall --width 1920 --height 1080 --fps 60 --title wall`,
	Args: cobra.ExactArgs(1),
	RunE: runSurfacesAdd,
}

var surfacesRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove a surface from the store",
	Args:  cobra.ExactArgs(1),
	RunE:  runSurfacesRemove,
}

var surfacesExportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Export the surface store to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSurfacesExport,
}

var surfacesImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the surface store with the surfaces from a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSurfacesImport,
}

var (
	surfacesFormat string

	addTitle   string
	addWidth   int
	addHeight  int
	addFPS     int
	addVisible bool
	addNoVideo bool
)

func init() {
	rootCmd.AddCommand(surfacesCmd)
	surfacesCmd.AddCommand(surfacesListCmd)
	surfacesCmd.AddCommand(surfacesAddCmd)
	surfacesCmd.AddCommand(surfacesRemoveCmd)
	surfacesCmd.AddCommand(surfacesExportCmd)
	surfacesCmd.AddCommand(surfacesImportCmd)

	surfacesListCmd.Flags().StringVarP(&surfacesFormat, "format", "f", "table", "output format (table or json)")

	surfacesAddCmd.Flags().StringVar(&addTitle, "title", "", "surface title (default is the generated id)")
	surfacesAddCmd.Flags().IntVar(&addWidth, "width", 0, "surface width in logical pixels")
	surfacesAddCmd.Flags().IntVar(&addHeight, "height", 0, "surface height in logical pixels")
	surfacesAddCmd.Flags().IntVar(&addFPS, "fps", 0, "target frame rate")
	surfacesAddCmd.Flags().BoolVar(&addVisible, "visible", false, "render in a visible window")
	surfacesAddCmd.Flags().BoolVar(&addNoVideo, "no-video", false, "disable network video emission")
}

func openStore() (*config.Store, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return config.NewStore(configMgr.SurfacesPath()), nil
}

func runSurfacesList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	surfaces, err := store.Load()
	if err != nil {
		return err
	}

	switch surfacesFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(surfaces)
	case "table":
		return printSurfacesTable(surfaces)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", surfacesFormat)
	}
}

func printSurfacesTable(surfaces []config.SurfaceConfig) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tTITLE\tURL\tSIZE\tFPS\tVIDEO")
	fmt.Fprintln(w, "--\t-----\t---\t----\t---\t-----")

	for _, s := range surfaces {
		video := "No"
		if s.EnableNetworkVideo {
			video = "Yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%d\t%s\n",
			s.ID, s.Title, s.URL, s.Width, s.Height, s.TargetFPS, video)
	}

	return nil
}

func runSurfacesAdd(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	surfaces, err := store.Load()
	if err != nil {
		return err
	}

	cfg := config.DefaultSurface()
	cfg.ID = uuid.NewString()
	cfg.URL = args[0]
	cfg.Title = addTitle
	if cfg.Title == "" {
		cfg.Title = cfg.ID
	}
	if addWidth > 0 {
		cfg.Width = addWidth
	}
	if addHeight > 0 {
		cfg.Height = addHeight
	}
	if addFPS > 0 {
		cfg.TargetFPS = addFPS
	}
	cfg.VisibleWindow = addVisible
	if addNoVideo {
		cfg.EnableNetworkVideo = false
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := store.Save(append(surfaces, cfg)); err != nil {
		return err
	}

	fmt.Printf("Surface added: %s\n", cfg.ID)
	return nil
}

func runSurfacesRemove(cmd *cobra.Command, args []string) error {
	id := args[0]

	store, err := openStore()
	if err != nil {
		return err
	}
	surfaces, err := store.Load()
	if err != nil {
		return err
	}

	kept := surfaces[:0]
	found := false
	for _, s := range surfaces {
		if s.ID == id {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return fmt.Errorf("no stored surface with id %q", id)
	}
	if err := store.Save(kept); err != nil {
		return err
	}

	fmt.Printf("Surface removed: %s\n", id)
	return nil
}

func runSurfacesExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.ExportTo(args[0]); err != nil {
		return err
	}
	fmt.Printf("Surface store exported to %s\n", args[0])
	return nil
}

func runSurfacesImport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	list, err := store.ImportFrom(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d surfaces from %s\n", len(list), args[0])
	return nil
}
