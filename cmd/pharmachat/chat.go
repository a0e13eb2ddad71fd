// The chat command is a terminal client against a running server: it logs
// in, keeps the conversation history client-side, and renders the SSE
// stream, recovering tool-call events with the incremental marker decoder.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/chzyer/readline"
	"github.com/manifoldco/promptui"

	"github.com/amitbl/pharmachat/pkg/chat/parts"
	"github.com/amitbl/pharmachat/pkg/marker"
	"github.com/amitbl/pharmachat/pkg/sse"
)

type client struct {
	serverURL string
	token     string
	showTools bool
	history   []parts.Message
}

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "the pharmachat server URL")
	showTools := fs.Bool("tools", true, "show tool-call events")
	fs.Parse(args)

	c := &client{
		serverURL: strings.TrimSuffix(*serverURL, "/"),
		showTools: *showTools,
	}
	if err := c.login(); err != nil {
		log.Fatal(err)
	}

	rl, err := readline.New("> ")
	if err != nil {
		log.Fatal(err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			// io.EOF or interrupt.
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return
			}
			log.Fatal(err)
		}
		if strings.TrimSpace(line) == "/q" || strings.TrimSpace(line) == "/quit" {
			return
		}
		if err := c.send(line); err != nil {
			log.Printf("Request failed: %v", err)
		}
	}
}

// login asks for credentials; an empty username continues anonymously.
func (c *client) login() error {
	userPrompt := promptui.Prompt{
		Label: "Username (empty for guest)",
	}
	username, err := userPrompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
			return nil
		}
		return err
	}
	if strings.TrimSpace(username) == "" {
		return nil
	}
	passPrompt := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
	}
	password, err := passPrompt.Run()
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return err
	}
	resp, err := http.Post(c.serverURL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: %s", resp.Status)
	}
	var result struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	c.token = result.Token
	fmt.Printf("Signed in as %s\n", result.Username)
	return nil
}

func (c *client) send(message string) error {
	body, err := json.Marshal(map[string]any{
		"message":            message,
		"history":            c.history,
		"include_tool_calls": c.showTools,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.serverURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server answered %s", resp.Status)
	}

	dec := marker.NewDecoder()
	var assistantText strings.Builder
	printed := false
	scanner := sse.NewScanner(resp.Body)
	for {
		ev, err := scanner.Scan()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if ev.Event == "done" {
			break
		}
		if ev.Event != "message" {
			continue
		}
		var flat string
		if err := json.Unmarshal([]byte(ev.Data), &flat); err != nil {
			return fmt.Errorf("malformed stream data: %w", err)
		}
		for _, piece := range dec.Feed(flat) {
			printed = c.render(piece, &assistantText) || printed
		}
	}
	for _, piece := range dec.Flush() {
		printed = c.render(piece, &assistantText) || printed
	}
	if printed {
		fmt.Println()
	}

	c.history = append(c.history, parts.UserMessage(message))
	if assistantText.Len() > 0 {
		c.history = append(c.history, parts.Message{
			Role:    parts.RoleAssistant,
			Content: assistantText.String(),
		})
	}
	return nil
}

func (c *client) render(piece marker.Piece, assistantText *strings.Builder) bool {
	if piece.Event != nil {
		ev := piece.Event.Payload
		switch piece.Event.Kind {
		case marker.KindStart:
			fmt.Printf("\n[%s ...]\n", ev.ToolName)
		case marker.KindResult:
			status := "ok"
			if !ev.Success {
				status = "failed: " + ev.Error
			}
			fmt.Printf("[%s %s]\n", ev.ToolName, status)
		}
		return true
	}
	if piece.Text == "" {
		return false
	}
	fmt.Print(piece.Text)
	assistantText.WriteString(piece.Text)
	return true
}
