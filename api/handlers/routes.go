package handlers

import (
	"net/http"
)

// NewRouter builds the route table shared by the server and tests.
func NewRouter(skillH *SkillHandler, triggerH *TriggerHandler, healthH *HealthHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/skill/invoke", skillH.HandleInvoke)
	mux.HandleFunc("POST /v1/skill/streamInvoke", skillH.HandleStreamInvoke)
	mux.HandleFunc("GET /v1/skill/results", skillH.HandleListResults)
	mux.HandleFunc("GET /v1/skill/results/{resultId}", skillH.HandleGetResult)
	mux.HandleFunc("GET /v1/skill/list", skillH.HandleListSkills)

	mux.HandleFunc("POST /v1/skill/triggers", triggerH.HandleCreate)
	mux.HandleFunc("GET /v1/skill/triggers", triggerH.HandleList)
	mux.HandleFunc("PUT /v1/skill/triggers", triggerH.HandleUpdate)
	mux.HandleFunc("DELETE /v1/skill/triggers/{triggerId}", triggerH.HandleDelete)
	mux.HandleFunc("POST /v1/skill/triggers/{triggerId}/enable", triggerH.HandleEnable)
	mux.HandleFunc("POST /v1/skill/triggers/{triggerId}/disable", triggerH.HandleDisable)

	mux.HandleFunc("GET /healthz", healthH.HandleHealthz)
	mux.HandleFunc("GET /readyz", healthH.HandleReady)

	return mux
}
