package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// WriteJSONError отправляет JSON-ответ с полем "error" и заданным статусом
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// RespondWithJSON отправляет JSON-ответ
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Failed to marshal JSON response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// GetSizeOrDefault читает ?size=; пустое значение - def, вне [1, max] - ошибка.
func GetSizeOrDefault(r *http.Request, def, max int) (int, error) {
	sizeStr := r.URL.Query().Get("size")
	if sizeStr == "" {
		return def, nil
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size < 1 || size > max {
		return 0, fmt.Errorf("size must be an integer between 1 and %d", max)
	}
	return size, nil
}
