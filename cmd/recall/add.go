package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshu2/recall/internal/lessons"
	"github.com/boshu2/recall/internal/models"
)

var (
	addSystem    bool
	addNoPromote bool
	addType      string
	addForce     bool
)

var addCmd = &cobra.Command{
	Use:   "add <category> <title> <content>",
	Short: "Record a new lesson",
	Long: `Record a lesson in the project tier (or system tier with --system).

Category is one of: pattern, correction, decision, gotcha, preference.`,
	Args: cobra.ExactArgs(3),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().BoolVar(&addSystem, "system", false, "store in the system tier (S###)")
	addCmd.Flags().BoolVar(&addNoPromote, "no-promote", false, "exclude from promotion")
	addCmd.Flags().StringVar(&addType, "type", "", "lesson type (constraint, informational, preference)")
	addCmd.Flags().BoolVar(&addForce, "force", false, "skip duplicate-title detection")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if !e.enabled() {
		return nil
	}

	category := models.Category(args[0])
	if !models.ValidCategory(category) {
		return fmt.Errorf("%w: invalid category %q", errUsage, args[0])
	}
	lessonType := models.LessonType(addType)
	if !models.ValidLessonType(lessonType) {
		return fmt.Errorf("%w: invalid type %q", errUsage, addType)
	}
	level := models.LevelProject
	if addSystem {
		level = models.LevelSystem
	}

	l, err := e.lessons.Add(lessons.AddOptions{
		Level:      level,
		Category:   category,
		Title:      args[1],
		Content:    args[2],
		Source:     models.SourceHuman,
		Promotable: !addNoPromote,
		Type:       lessonType,
		Force:      addForce,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added [%s] %s\n", l.ID, l.Title)
	return nil
}
