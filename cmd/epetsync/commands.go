package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"epetcare/internal/adapters/storage/sqlite"
	"epetcare/internal/snapshot"
	"epetcare/internal/syncclient"
)

const defaultSnapshotFile = "epetcare-snapshot.json.gz"

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local cache state and remote source info",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending changes and download the latest snapshot if it changed",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Send queued offline changes without downloading",
	Args:  cobra.NoArgs,
	RunE:  runPush,
}

var downloadCmd = &cobra.Command{
	Use:   "download [path]",
	Short: "Download the remote snapshot to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDownload,
}

var uploadCmd = &cobra.Command{
	Use:   "upload [path]",
	Short: "Upload a snapshot file (or the local cache) to the source",
	Long: `Upload replaces the remote data with a snapshot.

Without a path the local cache is exported and uploaded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpload,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the cache in sync until interrupted",
	Long: `Watch runs continuously.

With a file source it reacts to changes of the shared file; otherwise it
syncs every configured interval.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check TCP reachability of the configured servers",
	Args:  cobra.NoArgs,
	RunE:  runProbe,
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the offline change queue",
}

var queueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Queue an offline change",
	Args:  cobra.NoArgs,
	RunE:  runQueueAdd,
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending offline changes",
	Args:  cobra.NoArgs,
	RunE:  runQueueList,
}

var petsCmd = &cobra.Command{
	Use:   "pets [query]",
	Short: "Search pets in the local cache",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPets,
}

var agendaCmd = &cobra.Command{
	Use:   "agenda",
	Short: "List upcoming appointments from the local cache",
	Args:  cobra.NoArgs,
	RunE:  runAgenda,
}

var (
	queueType  string
	queueModel string
	queueID    string
	queueData  string
	agendaN    int
)

func init() {
	queueAddCmd.Flags().StringVar(&queueType, "type", "", "Change type: create|update|delete")
	queueAddCmd.Flags().StringVar(&queueModel, "model", "", "Model: appointment|medical_record|prescription")
	queueAddCmd.Flags().StringVar(&queueID, "id", "", "Target id (update/delete)")
	queueAddCmd.Flags().StringVar(&queueData, "data", "{}", "JSON payload")
	_ = queueAddCmd.MarkFlagRequired("type")
	_ = queueAddCmd.MarkFlagRequired("model")
	queueCmd.AddCommand(queueAddCmd, queueListCmd)

	agendaCmd.Flags().IntVarP(&agendaN, "limit", "n", 20, "Maximum appointments")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(needSource | needCache)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "source:\t%s (%s)\n", a.cfg.Source, a.src.Name())
	fmt.Fprintf(w, "cache:\t%s\n", a.cache.Path())

	meta, err := a.cache.Meta(ctx)
	switch {
	case errors.Is(err, sqlite.ErrNoMeta):
		fmt.Fprintf(w, "last sync:\tnever\n")
	case err != nil:
		return err
	default:
		fmt.Fprintf(w, "last sync:\t%s from %s\n", meta.SyncedAt.Local().Format(time.DateTime), meta.Source)
		fmt.Fprintf(w, "checksum:\t%s\n", meta.Checksum)
	}

	counts, err := a.cache.Counts(ctx)
	if err != nil {
		return err
	}
	for _, t := range snapshot.Tables {
		fmt.Fprintf(w, "  %s:\t%d\n", t, counts[t])
	}

	pending, err := a.cache.Pending(ctx, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "pending changes:\t%d\n", len(pending))

	info, err := a.src.Info(ctx)
	if err != nil {
		fmt.Fprintf(w, "remote:\tunavailable (%v)\n", err)
		return err
	}
	state := "up to date"
	if info.Checksum != meta.Checksum {
		state = "changed"
	}
	fmt.Fprintf(w, "remote:\t%s, schema v%d, %s\n", info.DBType, info.SchemaVersion, state)
	return nil
}

func runSync(cmd *cobra.Command, _ []string) error {
	a, err := newApp(needSource | needCache)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.manager().SyncOnce(cmd.Context())
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func runPush(cmd *cobra.Command, _ []string) error {
	a, err := newApp(needSource | needCache)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.manager().Push(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pushed %d, rejected %d\n", res.Pushed, res.PushFailed)
	if res.PushFailed > 0 {
		return fmt.Errorf("%d changes rejected by the server", res.PushFailed)
	}
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	a, err := newApp(needSource)
	if err != nil {
		return err
	}
	defer a.Close()

	path := defaultSnapshotFile
	if len(args) == 1 {
		path = args[0]
	}

	d, sum, err := a.src.Fetch(cmd.Context())
	if err != nil {
		return err
	}

	if err := writeSnapshotFile(path, d); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (checksum %s)\n", path, sum)
	return nil
}

// writeSnapshotFile escribe en un temporal del mismo directorio y renombra:
// si algo falla, el archivo anterior queda intacto.
func writeSnapshotFile(path string, d snapshot.Data) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".epetcare-*.tmp")
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := snapshot.Encode(tmp, d); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		a, err := newApp(needSource | needCache)
		if err != nil {
			return err
		}
		defer a.Close()

		sum, err := a.manager().Upload(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded local cache (checksum %s)\n", sum)
		return nil
	}

	a, err := newApp(needSource)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	d, err := snapshot.Decode(f)
	if err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}

	sum, err := a.src.Upload(cmd.Context(), d)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (checksum %s)\n", args[0], sum)
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := newApp(needSource | needCache)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	m := a.manager()
	m.OnUpdate(func(r syncclient.Result) {
		a.log.Info("cache updated", map[string]any{"checksum": r.Checksum, "counts": r.Counts})
	})

	if fs, ok := a.src.(*syncclient.FileSource); ok {
		if _, err := m.SyncOnce(ctx); err != nil {
			a.log.Warn("initial sync failed", map[string]any{"error": err.Error()})
		}
		return fs.Watch(ctx, func() {
			// los errores quedan en Status y en el log
			_, _ = m.SyncOnce(ctx)
		})
	}

	if err := m.Start(ctx); err != nil {
		return err
	}
	a.log.Info("watching", map[string]any{"interval": a.cfg.Interval.String()})
	<-ctx.Done()
	m.Stop()

	st := m.Status()
	a.log.Info("stopped", map[string]any{"syncs": st.Syncs, "skipped": st.Skipped, "failures": st.Failures})
	return nil
}

func runProbe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(0)
	if err != nil {
		return err
	}
	defer a.Close()

	targets, err := syncclient.ProbeTargets(a.cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	reachable := 0
	for _, t := range targets {
		res, err := syncclient.Probe(cmd.Context(), t.Host, t.Port, a.cfg.RequestTimeout)
		if err != nil {
			fmt.Fprintf(w, "%s:%d\tFAIL\t%v\n", t.Host, t.Port, err)
			continue
		}
		reachable++
		fmt.Fprintf(w, "%s\tOK\t%s\n", res.Address, res.Latency.Round(time.Millisecond))
	}
	if reachable == 0 {
		return syncclient.ErrUnavailable
	}
	return nil
}

func runQueueAdd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(needCache)
	if err != nil {
		return err
	}
	defer a.Close()

	changeType := strings.ToLower(strings.TrimSpace(queueType))
	switch changeType {
	case "create", "update", "delete":
	default:
		return fmt.Errorf("invalid --type %q (create|update|delete)", queueType)
	}
	if changeType != "create" && strings.TrimSpace(queueID) == "" {
		return fmt.Errorf("--id is required for %s", changeType)
	}

	id, err := a.cache.Enqueue(cmd.Context(), changeType, strings.TrimSpace(queueModel), strings.TrimSpace(queueID), json.RawMessage(queueData))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued change %d\n", id)
	return nil
}

func runQueueList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(needCache)
	if err != nil {
		return err
	}
	defer a.Close()

	pending, err := a.cache.Pending(cmd.Context(), 0)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tTYPE\tMODEL\tTARGET\tATTEMPTS\tLAST ERROR")
	for _, q := range pending {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", q.ID, q.ChangeType, q.Model, q.TargetID, q.Attempts, q.LastError)
	}
	return nil
}

func runPets(cmd *cobra.Command, args []string) error {
	a, err := newApp(needCache)
	if err != nil {
		return err
	}
	defer a.Close()

	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	pets, err := a.cache.ListPets(cmd.Context(), query)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tNAME\tSPECIES\tBREED\tOWNER")
	for _, p := range pets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Species, p.Breed, p.OwnerName)
	}
	return nil
}

func runAgenda(cmd *cobra.Command, _ []string) error {
	a, err := newApp(needCache)
	if err != nil {
		return err
	}
	defer a.Close()

	appts, err := a.cache.UpcomingAppointments(cmd.Context(), time.Now(), agendaN)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "WHEN\tPET\tREASON")
	for _, ap := range appts {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ap.DateTime.Local().Format("2006-01-02 15:04"), ap.PetID, ap.Reason)
	}
	return nil
}

func printResult(out io.Writer, r syncclient.Result) {
	if r.Pushed > 0 || r.PushFailed > 0 {
		fmt.Fprintf(out, "pushed %d changes (%d rejected)\n", r.Pushed, r.PushFailed)
	}
	if !r.Imported {
		fmt.Fprintf(out, "already up to date (checksum %s)\n", r.Checksum)
		return
	}
	fmt.Fprintf(out, "imported snapshot %s from %s\n", r.Checksum, r.Source)
	for _, t := range snapshot.Tables {
		fmt.Fprintf(out, "  %s: %d\n", t, r.Counts[t])
	}
}
