package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type startTaskResponse struct {
	TaskID string `json:"task_id"`
}

type summaryResponse struct {
	ChatTitle    string `json:"chat_title"`
	TotalMembers int    `json:"total_members"`
	BotCount     int    `json:"bot_count"`
	RecentCount  int    `json:"recent_count"`
	OutputPath   string `json:"output_path"`
}

type taskStatusResponse struct {
	TaskID       string           `json:"task_id"`
	Status       string           `json:"status"`
	Progress     []string         `json:"progress,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Summary      *summaryResponse `json:"summary,omitempty"`
}

// Консольный клиент для сервера выгрузки: ставит задачу, ждет ее
// завершения, печатает прогресс и скачивает файл результата.
func main() {
	var (
		serverAddr   string
		mode         string
		historyLimit int
		format       string
		outPath      string
	)
	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "Server address")
	flag.StringVar(&mode, "mode", "", "Export mode: member or admin (server default when empty)")
	flag.IntVar(&historyLimit, "limit", 0, "History scan limit (server default when 0)")
	flag.StringVar(&format, "format", "", "Output format: csv or xlsx (server default when empty)")
	flag.StringVar(&outPath, "o", "", "Where to save the downloaded file (defaults to the server file name)")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("Usage: client [flags] <chat link | @username | id>")
	}
	chat := flag.Arg(0)

	httpClient := &http.Client{Timeout: 60 * time.Second}

	taskID, err := startExport(httpClient, serverAddr, chat, mode, historyLimit, format)
	if err != nil {
		log.Fatalf("Не удалось поставить задачу: %v", err)
	}
	fmt.Printf("Задача поставлена: %s\n", taskID)

	status, err := waitForTask(httpClient, serverAddr, taskID)
	if err != nil {
		log.Fatalf("Ожидание задачи прервано: %v", err)
	}

	if status.Status == "failed" {
		log.Fatalf("Задача завершилась ошибкой: %s", status.ErrorMessage)
	}

	if status.Summary != nil {
		fmt.Printf("Чат: %s, участников: %d (ботов: %d, недавних: %d)\n",
			status.Summary.ChatTitle, status.Summary.TotalMembers,
			status.Summary.BotCount, status.Summary.RecentCount)
	}

	if outPath == "" {
		outPath = "members_export"
		if status.Summary != nil && status.Summary.OutputPath != "" {
			outPath = filepath.Base(status.Summary.OutputPath)
		}
	}
	if err := downloadFile(httpClient, serverAddr, taskID, outPath); err != nil {
		log.Fatalf("Не удалось скачать файл результата: %v", err)
	}
	fmt.Printf("Файл сохранен: %s\n", outPath)
}

// startExport ставит задачу выгрузки и возвращает ее идентификатор.
func startExport(client *http.Client, serverAddr, chat, mode string, historyLimit int, format string) (string, error) {
	payload := map[string]interface{}{"chat": chat}
	if mode != "" {
		payload["mode"] = mode
	}
	if historyLimit > 0 {
		payload["history_limit"] = historyLimit
	}
	if format != "" {
		payload["format"] = format
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	resp, err := client.Post(serverAddr+"/api/v1/exports", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("сервер вернул статус %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var started startTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		return "", err
	}
	return started.TaskID, nil
}

// waitForTask опрашивает статус задачи до ее завершения, печатая новые строки прогресса.
func waitForTask(client *http.Client, serverAddr, taskID string) (*taskStatusResponse, error) {
	printed := 0
	for {
		time.Sleep(2 * time.Second)

		resp, err := client.Get(serverAddr + "/api/v1/exports/" + taskID)
		if err != nil {
			return nil, err
		}

		var status taskStatusResponse
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		for ; printed < len(status.Progress); printed++ {
			fmt.Fprintln(os.Stderr, status.Progress[printed])
		}

		switch status.Status {
		case "completed", "failed":
			return &status, nil
		}
	}
}

// downloadFile скачивает файл результата задачи в указанный путь.
func downloadFile(client *http.Client, serverAddr, taskID, outPath string) error {
	resp, err := client.Get(serverAddr + "/api/v1/exports/" + taskID + "/file")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервер вернул статус %d", resp.StatusCode)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}
