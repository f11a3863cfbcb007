package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boshu2/recall/internal/handoffs"
	"github.com/boshu2/recall/internal/hooks"
	"github.com/boshu2/recall/internal/inject"
	"github.com/boshu2/recall/internal/models"
	"github.com/boshu2/recall/internal/transcript"
)

var handoffCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Manage work handoffs",
	Long: `Handoffs capture in-flight work so the next session resumes instead of
rediscovering. Shared handoffs live in HANDOFFS.md; --stealth ones in
HANDOFFS_LOCAL.md, which should be gitignored.`,
}

var (
	handoffListStatus string
	handoffListAll    bool

	handoffAddDesc    string
	handoffAddAgent   string
	handoffAddPhase   string
	handoffAddStealth bool

	handoffUpTitle      string
	handoffUpStatus     string
	handoffUpPhase      string
	handoffUpAgent      string
	handoffUpDesc       string
	handoffUpNext       string
	handoffUpCheckpoint string
	handoffUpRefs       []string
	handoffUpBlockedBy  []string

	handoffSessionFlag string
)

func init() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List handoffs",
		Args:  cobra.NoArgs,
		RunE:  runHandoffList,
	}
	listCmd.Flags().StringVar(&handoffListStatus, "status", "", "filter by status")
	listCmd.Flags().BoolVar(&handoffListAll, "all", false, "include completed handoffs")

	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a handoff",
		Args:  cobra.ExactArgs(1),
		RunE:  runHandoffAdd,
	}
	addCmd.Flags().StringVar(&handoffAddDesc, "desc", "", "description")
	addCmd.Flags().StringVar(&handoffAddAgent, "agent", "", "expected executor")
	addCmd.Flags().StringVar(&handoffAddPhase, "phase", "", "initial phase")
	addCmd.Flags().BoolVar(&handoffAddStealth, "stealth", false, "store in the local-only file")

	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update handoff fields",
		Args:  cobra.ExactArgs(1),
		RunE:  runHandoffUpdate,
	}
	updateCmd.Flags().StringVar(&handoffUpTitle, "title", "", "new title")
	updateCmd.Flags().StringVar(&handoffUpStatus, "status", "", "new status")
	updateCmd.Flags().StringVar(&handoffUpPhase, "phase", "", "new phase")
	updateCmd.Flags().StringVar(&handoffUpAgent, "agent", "", "new agent")
	updateCmd.Flags().StringVar(&handoffUpDesc, "desc", "", "new description")
	updateCmd.Flags().StringVar(&handoffUpNext, "next", "", "next steps")
	updateCmd.Flags().StringVar(&handoffUpCheckpoint, "checkpoint", "", "checkpoint text")
	updateCmd.Flags().StringSliceVar(&handoffUpRefs, "refs", nil, "path:line references")
	updateCmd.Flags().StringSliceVar(&handoffUpBlockedBy, "blocked-by", nil, "blocking handoff IDs")

	syncTodosCmd := &cobra.Command{
		Use:   "sync-todos <id>",
		Short: "Sync a TodoWrite list (stdin JSON) onto a handoff",
		Args:  cobra.ExactArgs(1),
		RunE:  runHandoffSyncTodos,
	}

	setContextCmd := &cobra.Command{
		Use:   "set-context <id>",
		Short: "Attach a context record (stdin JSON) to a handoff",
		Args:  cobra.ExactArgs(1),
		RunE:  runHandoffSetContext,
	}

	processCmd := &cobra.Command{
		Use:   "process-transcript <transcript-path>",
		Short: "Apply citations and commands from a transcript",
		Args:  cobra.ExactArgs(1),
		RunE:  runHandoffProcessTranscript,
	}
	processCmd.Flags().StringVar(&handoffSessionFlag, "session", "", "session ID (required)")

	handoffCmd.AddCommand(
		listCmd,
		&cobra.Command{Use: "show <id>", Short: "Show one handoff in full", Args: cobra.ExactArgs(1), RunE: runHandoffShow},
		addCmd,
		updateCmd,
		&cobra.Command{Use: "tried <id> <outcome> <description>", Short: "Record an attempt", Args: cobra.ExactArgs(3), RunE: runHandoffTried},
		&cobra.Command{Use: "complete <id>", Short: "Mark a handoff completed", Args: cobra.ExactArgs(1), RunE: runHandoffComplete},
		&cobra.Command{Use: "archive", Short: "Rotate old completed handoffs to the archive file", Args: cobra.NoArgs, RunE: runHandoffArchive},
		&cobra.Command{Use: "inject", Short: "Print active handoffs as a context block", Args: cobra.NoArgs, RunE: runHandoffInject},
		&cobra.Command{Use: "inject-todos", Short: "Print the todo continuation block", Args: cobra.NoArgs, RunE: runHandoffInjectTodos},
		syncTodosCmd,
		setContextCmd,
		&cobra.Command{Use: "set-session <session-id> <handoff-id>", Short: "Link a session to a handoff", Args: cobra.ExactArgs(2), RunE: runHandoffSetSession},
		&cobra.Command{Use: "get-session-handoff <session-id>", Short: "Print the handoff linked to a session", Args: cobra.ExactArgs(1), RunE: runHandoffGetSession},
		processCmd,
	)
	rootCmd.AddCommand(handoffCmd)
}

func runHandoffList(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	status := models.Status(handoffListStatus)
	if handoffListStatus != "" && !models.ValidStatus(status) {
		return fmt.Errorf("%w: invalid status %q", errUsage, handoffListStatus)
	}
	all, err := e.handoffs.List(handoffs.ListFilter{Status: status, IncludeCompleted: handoffListAll})
	if err != nil {
		return err
	}
	for _, h := range all {
		marker := ""
		if h.Stealth {
			marker = " (stealth)"
		}
		fmt.Printf("[%s] %s - %s/%s%s\n", h.ID, h.Title, h.Status, h.Phase, marker)
	}
	return nil
}

func runHandoffShow(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	h, err := e.handoffs.GetByID(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("[%s] %s\n", h.ID, h.Title)
	fmt.Printf("Status: %s | Phase: %s", h.Status, h.Phase)
	if h.Agent != "" {
		fmt.Printf(" | Agent: %s", h.Agent)
	}
	fmt.Printf("\nCreated: %s | Updated: %s\n", h.Created, h.Updated)
	if h.Description != "" {
		fmt.Printf("\n%s\n", h.Description)
	}
	if len(h.Refs) > 0 {
		fmt.Printf("Refs: %s\n", strings.Join(h.Refs, ", "))
	}
	if h.Checkpoint != "" {
		fmt.Printf("Checkpoint: %s\n", h.Checkpoint)
	}
	if len(h.Tried) > 0 {
		fmt.Println("\nTried:")
		for i, t := range h.Tried {
			fmt.Printf("%d. [%s] %s\n", i+1, t.Outcome, t.Description)
		}
	}
	if h.NextSteps != "" {
		fmt.Printf("\nNext: %s\n", h.NextSteps)
	}
	if !h.Context.Empty() {
		fmt.Printf("\nContext: %s\n", h.Context.Summary)
		if len(h.Context.CriticalFiles) > 0 {
			fmt.Printf("Critical files: %s\n", strings.Join(h.Context.CriticalFiles, ", "))
		}
		if h.Context.GitRef != "" {
			fmt.Printf("Git ref: %s\n", h.Context.GitRef)
		}
	}
	if chain := blockedByChain(e, h); chain != "" {
		fmt.Printf("\nBlocked by: %s\n", chain)
	}
	return nil
}

// blockedByChain renders the transitive blocked-by closure with a visited
// set, so ID cycles render once instead of looping.
func blockedByChain(e *env, h *models.Handoff) string {
	visited := map[string]bool{h.ID: true}
	var parts []string
	queue := append([]string(nil), h.BlockedBy...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		blocker, err := e.handoffs.GetByID(id)
		if err != nil {
			parts = append(parts, id+" (missing)")
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s] %s (%s)", blocker.ID, blocker.Title, blocker.Status))
		queue = append(queue, blocker.BlockedBy...)
	}
	return strings.Join(parts, " <- ")
}

func runHandoffAdd(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}
	h, err := e.handoffs.Add(handoffs.AddOptions{
		Title:       args[0],
		Description: handoffAddDesc,
		Agent:       models.Agent(handoffAddAgent),
		Phase:       models.Phase(handoffAddPhase),
		Stealth:     handoffAddStealth,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added [%s] %s\n", h.ID, h.Title)
	return nil
}

func runHandoffUpdate(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}

	var fields handoffs.UpdateFields
	if cmd.Flags().Changed("title") {
		fields.Title = &handoffUpTitle
	}
	if cmd.Flags().Changed("status") {
		s := models.Status(handoffUpStatus)
		if !models.ValidStatus(s) {
			return fmt.Errorf("%w: invalid status %q", errUsage, handoffUpStatus)
		}
		fields.Status = &s
	}
	if cmd.Flags().Changed("phase") {
		p := models.Phase(handoffUpPhase)
		if !models.ValidPhase(p) {
			return fmt.Errorf("%w: invalid phase %q", errUsage, handoffUpPhase)
		}
		fields.Phase = &p
	}
	if cmd.Flags().Changed("agent") {
		a := models.Agent(handoffUpAgent)
		fields.Agent = &a
	}
	if cmd.Flags().Changed("desc") {
		fields.Description = &handoffUpDesc
	}
	if cmd.Flags().Changed("next") {
		fields.NextSteps = &handoffUpNext
	}
	if cmd.Flags().Changed("checkpoint") {
		fields.Checkpoint = &handoffUpCheckpoint
	}
	if cmd.Flags().Changed("refs") {
		fields.Refs = &handoffUpRefs
	}
	if cmd.Flags().Changed("blocked-by") {
		fields.BlockedBy = &handoffUpBlockedBy
	}

	h, err := e.handoffs.Update(args[0], fields)
	if err != nil {
		return err
	}
	fmt.Printf("Updated [%s] %s - %s/%s\n", h.ID, h.Title, h.Status, h.Phase)
	return nil
}

func runHandoffTried(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}
	outcome := models.Outcome(args[1])
	if !models.ValidOutcome(outcome) {
		return fmt.Errorf("%w: invalid outcome %q", errUsage, args[1])
	}
	h, err := e.handoffs.AddTriedStep(args[0], outcome, args[2])
	if err != nil {
		return err
	}
	fmt.Printf("Recorded step %d on [%s] - %s/%s\n", len(h.Tried), h.ID, h.Status, h.Phase)
	return nil
}

func runHandoffComplete(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}
	h, err := e.handoffs.Complete(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Completed [%s] %s\n", h.ID, h.Title)
	return nil
}

func runHandoffArchive(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}
	n, err := e.handoffs.Archive()
	if err != nil {
		return err
	}
	fmt.Printf("Archived %d handoff(s)\n", n)
	return nil
}

func runHandoffInject(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	active, err := e.handoffs.List(handoffs.ListFilter{})
	if err != nil {
		return err
	}
	fmt.Print(inject.FormatHandoffs(active, e.cfg.Inject.ThemeBuckets))
	return nil
}

func runHandoffInjectTodos(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	active, err := e.handoffs.List(handoffs.ListFilter{})
	if err != nil {
		return err
	}
	fmt.Print(inject.FormatTodoContinuation(active))
	return nil
}

func runHandoffSyncTodos(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}
	var todos []transcript.TodoItem
	if err := json.NewDecoder(os.Stdin).Decode(&todos); err != nil {
		return fmt.Errorf("%w: expected a JSON todo array on stdin", errUsage)
	}
	orch := hooks.New(e.cfg)
	orch.SyncTodos(args[0], todos)
	return nil
}

func runHandoffSetContext(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}
	var rec models.ContextRecord
	if err := json.NewDecoder(os.Stdin).Decode(&rec); err != nil {
		return fmt.Errorf("%w: expected a JSON context record on stdin", errUsage)
	}
	if err := e.handoffs.SetContext(args[0], rec); err != nil {
		return err
	}
	fmt.Printf("Context set on %s\n", args[0])
	return nil
}

func runHandoffSetSession(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}
	if err := e.handoffs.LinkSession(args[1], args[0]); err != nil {
		return err
	}
	return e.state.SetSessionHandoff(args[0], args[1], "")
}

func runHandoffGetSession(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if id := e.state.GetSessionHandoff(args[0]); id != "" {
		fmt.Println(id)
	}
	return nil
}

func runHandoffProcessTranscript(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}
	if handoffSessionFlag == "" {
		return fmt.Errorf("%w: --session is required", errUsage)
	}
	orch := hooks.New(e.cfg)
	_, err = orch.Stop(context.Background(), &hooks.Input{
		SessionID:      handoffSessionFlag,
		TranscriptPath: args[0],
	})
	return err
}
