package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

type WebhookRequest struct {
	Text string `json:"text"`
}

type WebhookResponse struct {
	Response string `json:"response"`
}

func webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Error parsing JSON", http.StatusBadRequest)
		return
	}

	log.Printf("🎤 DIALOGUE REQUEST RECEIVED:")
	log.Printf("    Caller said: %q", req.Text)

	// Simulate dialogue engine latency
	time.Sleep(300 * time.Millisecond)

	response := WebhookResponse{
		Response: cannedReply(req.Text),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ DIALOGUE RESPONSE SENT: %q", response.Response)
	log.Println("---")
}

func cannedReply(text string) string {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "hola"), strings.Contains(lower, "buenos"):
		return "Hola, ¿en qué puedo ayudarle hoy?"
	case strings.Contains(lower, "horario"):
		return "Nuestro horario de atención es de lunes a viernes, de nueve a dieciocho horas."
	case strings.Contains(lower, "adiós"), strings.Contains(lower, "gracias"):
		return "Gracias por llamar. ¡Hasta pronto!"
	default:
		return "Entiendo. ¿Puede darme más detalles, por favor?"
	}
}

func main() {
	http.HandleFunc("/webhook", webhookHandler)

	log.Println("🚀 Test dialogue webhook listening on :9200")
	log.Println("   POST /webhook - returns canned agent replies")

	if err := http.ListenAndServe(":9200", nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
