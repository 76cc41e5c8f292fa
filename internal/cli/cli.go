package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	internal_http "github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/internal/http"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/internal/log"
	internal_storage "github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/internal/storage"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/contacts"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/models"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/service"
)

func SetupCLI(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow control API server",
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, err := cmd.Flags().GetString("db")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving db flag: %v", err)
				os.Exit(1)
			}
			port, err := cmd.Flags().GetString("port")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving port flag: %v", err)
				os.Exit(1)
			}
			store := initStore(dbConnStr)
			defer store.Close()
			if err := internal_http.StartServer(port, store, contacts.NewStaticDirectory()); err != nil {
				log.GetLogger().Errorf("Server failed: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "8080", "Port for the control API")

	loadCmd := &cobra.Command{
		Use:   "load [file]",
		Short: "Load a workflow definition from a JSON file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, err := cmd.Flags().GetString("db")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving db flag: %v", err)
				os.Exit(1)
			}
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewWorkflowService(store, log.GetLogger())
			loadDefinition(svc, args[0])
		},
	}

	definitionsCmd := &cobra.Command{
		Use:   "definitions",
		Short: "List all workflow definitions",
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, err := cmd.Flags().GetString("db")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving db flag: %v", err)
				os.Exit(1)
			}
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewWorkflowService(store, log.GetLogger())
			listDefinitions(svc)
		},
	}

	instancesCmd := &cobra.Command{
		Use:   "instances",
		Short: "List all workflow instances",
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, err := cmd.Flags().GetString("db")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving db flag: %v", err)
				os.Exit(1)
			}
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewWorkflowService(store, log.GetLogger())
			listInstances(svc)
		},
	}

	runCmd := &cobra.Command{
		Use:   "run [definition-id]",
		Short: "Create an instance of a definition and start it",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, err := cmd.Flags().GetString("db")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving db flag: %v", err)
				os.Exit(1)
			}
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewWorkflowService(store, log.GetLogger())
			defer svc.Close()
			runInstance(svc, args[0])
		},
	}

	rootCmd.AddCommand(serveCmd, loadCmd, definitionsCmd, instancesCmd, runCmd)
}

func loadDefinition(svc *service.WorkflowService, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.GetLogger().Errorf("Failed to read definition file: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to read definition file: %v\n", err)
		os.Exit(1)
	}
	var def models.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		log.GetLogger().Errorf("Failed to parse definition file: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to parse definition file: %v\n", err)
		os.Exit(1)
	}
	if err := svc.SaveDefinition(def); err != nil {
		log.GetLogger().Errorf("Failed to save definition: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to save definition: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Loaded definition '%s' (version %d)\n", def.ID, def.Version)
}

func listDefinitions(svc *service.WorkflowService) {
	defs, err := svc.ListDefinitions()
	if err != nil {
		log.GetLogger().Errorf("Failed to list definitions: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to list definitions: %v\n", err)
		os.Exit(1)
	}
	if len(defs) == 0 {
		fmt.Fprintf(os.Stdout, "No definitions found.\n")
		return
	}
	fmt.Fprintf(os.Stdout, "Definitions:\n")
	for _, def := range defs {
		fmt.Fprintf(os.Stdout, "- ID: %s, Name: %s, Version: %d, Elements: %d\n",
			def.ID, def.Name, def.Version, len(def.Elements))
	}
}

func listInstances(svc *service.WorkflowService) {
	instances, err := svc.ListInstances()
	if err != nil {
		log.GetLogger().Errorf("Failed to list instances: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to list instances: %v\n", err)
		os.Exit(1)
	}
	if len(instances) == 0 {
		fmt.Fprintf(os.Stdout, "No instances found.\n")
		return
	}
	fmt.Fprintf(os.Stdout, "Instances:\n")
	for _, inst := range instances {
		fmt.Fprintf(os.Stdout, "- ID: %s, Workflow: %s, Status: %s, Created: %s\n",
			inst.ID, inst.WorkflowID, inst.Status, inst.CreatedAt.Format(time.RFC3339))
	}
}

func runInstance(svc *service.WorkflowService, definitionID string) {
	inst, err := svc.CreateInstance(definitionID, nil)
	if err != nil {
		log.GetLogger().Errorf("Failed to create instance: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to create instance: %v\n", err)
		os.Exit(1)
	}
	if err := svc.StartInstance(context.Background(), inst.ID); err != nil {
		log.GetLogger().Errorf("Failed to start instance: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to start instance: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Started instance %s of workflow '%s'\n", inst.ID, definitionID)
}

func initStore(dbConnStr string) *internal_storage.PostgresStore {
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}
