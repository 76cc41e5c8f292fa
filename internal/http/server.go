package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/internal/log"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/contacts"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/engine"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/models"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/service"
	"github.com/avrvenkatesa/pathfinder-phase1a-mvp-sub001/pkg/storage"
)

// NewHandler builds the HTTP control surface over a WorkflowService.
// The directory is optional; when present, execution snapshots carry
// resolved contact details for task assignees. The state endpoint is a
// cheap read designed for the UI monitor's ~1s polling cadence.
func NewHandler(svc *service.WorkflowService, directory contacts.Directory) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("POST /definitions", createDefinitionHTTP(svc))
	mux.HandleFunc("GET /definitions", listDefinitionsHTTP(svc))
	mux.HandleFunc("POST /instances", createInstanceHTTP(svc))
	mux.HandleFunc("GET /instances", listInstancesHTTP(svc))
	mux.HandleFunc("POST /instances/{id}/start", controlHandler(svc.StartInstance))
	mux.HandleFunc("POST /instances/{id}/pause", controlHandler(svc.PauseInstance))
	mux.HandleFunc("POST /instances/{id}/resume", controlHandler(svc.ResumeInstance))
	mux.HandleFunc("POST /instances/{id}/stop", controlHandler(svc.StopInstance))
	mux.HandleFunc("POST /instances/{id}/tasks/{taskID}/complete", completeTaskHTTP(svc))
	mux.HandleFunc("GET /instances/{id}/state", executionStateHTTP(svc, directory))
	return mux
}

// StartServer runs the control API on the given port, backed by the
// supplied store.
func StartServer(port string, store storage.Store, directory contacts.Directory) error {
	svc := service.NewWorkflowService(store, log.GetLogger())
	log.GetLogger().Infof("Starting Pathfinder workflow server on :%s", port)
	return http.ListenAndServe(":"+port, NewHandler(svc, directory))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Pathfinder workflow server is running")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

func createDefinitionHTTP(svc *service.WorkflowService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var def models.WorkflowDefinition
		if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
			http.Error(w, fmt.Sprintf("Invalid definition body: %v", err), http.StatusBadRequest)
			return
		}
		if err := svc.SaveDefinition(def); err != nil {
			log.GetLogger().Errorf("Failed to save definition: %v", err)
			http.Error(w, fmt.Sprintf("Failed to save definition: %v", err), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, def)
	}
}

func listDefinitionsHTTP(svc *service.WorkflowService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defs, err := svc.ListDefinitions()
		if err != nil {
			log.GetLogger().Errorf("Failed to list definitions: %v", err)
			http.Error(w, fmt.Sprintf("Failed to list definitions: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, defs)
	}
}

type createInstanceRequest struct {
	DefinitionID string         `json:"definition_id"`
	Variables    map[string]any `json:"variables,omitempty"`
}

func createInstanceHTTP(svc *service.WorkflowService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createInstanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if req.DefinitionID == "" {
			http.Error(w, "Missing 'definition_id'", http.StatusBadRequest)
			return
		}
		inst, err := svc.CreateInstance(req.DefinitionID, req.Variables)
		if err != nil {
			log.GetLogger().Errorf("Failed to create instance: %v", err)
			http.Error(w, fmt.Sprintf("Failed to create instance: %v", err), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, inst)
	}
}

func listInstancesHTTP(svc *service.WorkflowService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instances, err := svc.ListInstances()
		if err != nil {
			log.GetLogger().Errorf("Failed to list instances: %v", err)
			http.Error(w, fmt.Sprintf("Failed to list instances: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, instances)
	}
}

// controlHandler adapts one of the service's instance control calls.
// Invalid transitions map to 409, unknown instances to 404.
func controlHandler(call func(ctx context.Context, instanceID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := call(r.Context(), id); err != nil {
			log.GetLogger().Errorf("Control call failed for instance %s: %v", id, err)
			http.Error(w, fmt.Sprintf("Control call failed: %v", err), controlStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"instance_id": id, "result": "ok"})
	}
}

func controlStatus(err error) int {
	var execErr *engine.ExecutionError
	if errors.As(err, &execErr) && execErr.Kind == engine.KindInvalidTransition {
		return http.StatusConflict
	}
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

type completeTaskRequest struct {
	Output map[string]any `json:"output,omitempty"`
}

func completeTaskHTTP(svc *service.WorkflowService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		taskID := r.PathValue("taskID")
		var req completeTaskRequest
		if r.Body != nil {
			// An empty body means no output; decode errors on anything else.
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
				http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
				return
			}
		}
		if err := svc.CompleteTask(r.Context(), id, taskID, req.Output); err != nil {
			log.GetLogger().Errorf("Failed to complete task %s on instance %s: %v", taskID, id, err)
			http.Error(w, fmt.Sprintf("Failed to complete task: %v", err), controlStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"instance_id": id, "task_id": taskID, "result": "ok"})
	}
}

// executionStateResponse decorates the engine snapshot with the
// directory's view of each assignee.
type executionStateResponse struct {
	models.WorkflowExecution
	Contacts map[string]contacts.Contact `json:"contacts,omitempty"`
}

func executionStateHTTP(svc *service.WorkflowService, directory contacts.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		snap, err := svc.GetExecutionState(r.Context(), id)
		if err != nil {
			log.GetLogger().Errorf("Failed to get execution state for instance %s: %v", id, err)
			http.Error(w, fmt.Sprintf("Failed to get execution state: %v", err), controlStatus(err))
			return
		}
		resp := executionStateResponse{WorkflowExecution: snap}
		if directory != nil {
			for _, task := range snap.Tasks {
				if task.AssignedTo == nil {
					continue
				}
				if resp.Contacts == nil {
					resp.Contacts = make(map[string]contacts.Contact)
				}
				c, _ := directory.Resolve(r.Context(), *task.AssignedTo)
				resp.Contacts[*task.AssignedTo] = c
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
