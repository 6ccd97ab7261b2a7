package handlers

import "net/http"

const LivenessText = "Proxy Gemini Chatbot attivo e funzionante!"

// Root answers GET / with a plain liveness text.
func Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(LivenessText))
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
