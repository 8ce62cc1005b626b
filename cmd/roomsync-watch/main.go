// Command roomsync-watch logs in with a session cookie, mounts both
// transports and prints room and notification changes until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/roomsync"
	"github.com/dmitrymomot/roomsync/pkg/config"
	"github.com/dmitrymomot/roomsync/pkg/logger"
	"github.com/dmitrymomot/roomsync/pkg/rooms"
)

type session struct {
	Cookie     string `env:"SESSION_COOKIE,required"`
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"SESSION"`
	UserID     string `env:"USER_ID,required"`
	Env        string `env:"ENV" envDefault:"development"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "roomsync-watch:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var sess session
	if err := config.Load(&sess, config.WithPrefix(roomsync.EnvPrefix)); err != nil {
		return err
	}
	log := logger.New(logger.WithEnvironment(sess.Env, "roomsync-watch"))

	cfg, err := roomsync.LoadConfig()
	if err != nil {
		return err
	}

	client, err := roomsync.New(cfg, roomsync.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Shutdown(shutdownCtx); err != nil {
			log.LogAttrs(shutdownCtx, slog.LevelWarn, "shutdown", logger.Error(err))
		}
	}()

	creds := roomsync.SessionCredentials(sess.UserID, &http.Cookie{Name: sess.CookieName, Value: sess.Cookie})
	if err := client.Login(ctx, creds); err != nil {
		return err
	}

	for _, kind := range []roomsync.Kind{roomsync.EventStream, roomsync.MessageChannel} {
		release, err := client.Mount(ctx, kind)
		if err != nil {
			return fmt.Errorf("mount %s: %w", kind, err)
		}
		defer release()
	}

	roomSub := client.Rooms().Watch(ctx)
	defer roomSub.Close()
	noteSub := client.Notifications().Watch(ctx)
	defer noteSub.Close()

	printRooms(client.Rooms().State())
	for {
		select {
		case <-ctx.Done():
			return client.Logout(context.WithoutCancel(ctx))
		case state, ok := <-roomSub.C():
			if !ok {
				return nil
			}
			printRooms(state)
		case change, ok := <-noteSub.C():
			if !ok {
				return nil
			}
			if change.ListsPurged {
				printNotifications(ctx, client)
			}
			fmt.Printf("unread notifications: %t (stale: %t)\n", change.Unread, change.Stale)
		}
	}
}

func printRooms(state rooms.State) {
	total := 0
	for _, r := range state.Rooms {
		total += r.UnreadCount
	}
	fmt.Printf("rooms: %d, unread messages: %d\n", len(state.Rooms), total)
	for _, r := range state.Rooms {
		marker := " "
		if state.Viewing && state.ViewingID == r.ID {
			marker = ">"
		}
		fmt.Printf("%s #%d %-16s %3d  %s\n", marker, r.ID, r.PartnerNickname, r.UnreadCount, r.LastMessage)
	}
}

func printNotifications(ctx context.Context, client *roomsync.Client) {
	page, err := client.NotificationPage(ctx, 0)
	if err != nil {
		return
	}
	for _, e := range page.Events {
		read := " "
		if !e.IsRead {
			read = "*"
		}
		fmt.Printf("%s %s\n", read, client.FormatNotification(e))
	}
}
