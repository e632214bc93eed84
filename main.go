package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/cupogo/andvari/utils/zlog"

	"github.com/liut/parley/htdocs"
	"github.com/liut/parley/pkg/models/convo"
	"github.com/liut/parley/pkg/services/chat"
	"github.com/liut/parley/pkg/services/chatapi"
	"github.com/liut/parley/pkg/services/stores"
	"github.com/liut/parley/pkg/settings"
	"github.com/liut/parley/pkg/web"
)

func main() {
	app := &cli.App{
		Name:    "parley",
		Usage:   "client of a remote conversational assistant",
		Version: settings.Current.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "token", Usage: "bearer token, instead of the saved one", EnvVars: []string{"PARLEY_TOKEN"}},
		},
		Before: func(*cli.Context) error {
			setupLogger()
			return nil
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the local bridge for a presentation surface", Action: serveAction},
			{Name: "token", Usage: "verify a bearer token and keep it", ArgsUsage: "<token>", Action: tokenAction},
			{Name: "conversations", Aliases: []string{"ls"}, Usage: "list conversations", Action: listAction,
				Flags: []cli.Flag{&cli.BoolFlag{Name: "cached", Usage: "list the last seen ones, without the service"}}},
			{Name: "transcribe", Usage: "transcribe an audio file", ArgsUsage: "<file>", Action: transcribeAction},
			{Name: "usage", Usage: "show environment settings", Action: func(*cli.Context) error { return settings.Usage() }},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger() {
	var zlogger *zap.Logger
	if settings.InDevelop() {
		zlogger, _ = zap.NewDevelopment()
	} else {
		zlogger, _ = zap.NewProduction()
	}
	sugar := zlogger.Sugar()
	zlog.Set(sugar)
}

func newClient(token string) (*chatapi.Client, error) {
	return chatapi.New(settings.Current.ServiceURL, token, chatapi.WithTimeout(settings.Current.RequestTimeout))
}

// loadToken returns the flag token or the saved one
func loadToken(c *cli.Context) (string, error) {
	if token := c.String("token"); len(token) > 0 {
		return token, nil
	}
	id, err := stores.SgtSession().Load(c.Context)
	if errors.Is(err, stores.ErrNoSession) {
		return "", errors.New("not logged in, run: parley token <token>")
	}
	if err != nil {
		return "", err
	}
	return id.Token, nil
}

func newSession(c *cli.Context, opts ...chat.Option) (*chat.Session, error) {
	token, err := loadToken(c)
	if err != nil {
		return nil, err
	}
	api, err := newClient(token)
	if err != nil {
		return nil, err
	}
	preset, _ := stores.LoadPreset()
	opts = append([]chat.Option{
		chat.WithPreset(preset),
		chat.WithNoticeDelay(settings.Current.VoiceNoticeDelay),
	}, opts...)
	return chat.New(api, opts...), nil
}

func startSession(c *cli.Context, opts ...chat.Option) (*chat.Session, error) {
	sess, err := newSession(c, opts...)
	if err != nil {
		return nil, err
	}
	if err = sess.Start(c.Context); err != nil {
		sess.Close()
		if errors.Is(err, chat.ErrUnauthorized) {
			_ = stores.SgtSession().Clear(c.Context)
			return nil, errors.New("token rejected, run: parley token <token>")
		}
		return nil, err
	}
	return sess, nil
}

func serveAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := chat.NewBus()
	opts := []chat.Option{chat.WithObserver(bus)}
	if mic := commandMicrophone(settings.Current.MicCommand); mic != nil {
		opts = append(opts, chat.WithMicrophone(mic))
	}
	sess, err := startSession(c, opts...)
	if err != nil {
		return err
	}
	defer sess.Close()
	logger().Infow("session ready", "uid", sess.User().UID, "conversations", len(sess.Conversations()))
	go keepConversations(ctx, bus, stores.SgtConversationCache(sess.User().UID))

	srv := web.New(web.Config{
		Addr:         settings.Current.HTTPListen,
		Debug:        settings.InDevelop(),
		RateLimit:    settings.Current.RateLimit,
		AllowOrigins: settings.Current.AllowOrigins,
		Session:      sess,
		Bus:          bus,
		Store:        stores.SgtSession(),
		OnLogout:     stop,
		DocHandler:   http.FileServer(http.FS(htdocs.FS())),
	})

	if err = srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger().Infow("bye")
	return nil
}

func tokenAction(c *cli.Context) error {
	token := c.Args().First()
	if len(token) == 0 {
		return cli.Exit("token is required", 2)
	}
	api, err := newClient(token)
	if err != nil {
		return err
	}
	user, err := api.VerifyToken(c.Context)
	if err != nil {
		return err
	}
	if err = stores.SgtSession().Save(c.Context, &stores.Identity{Token: token, User: user}); err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", user.Name, user.UID)
	return nil
}

// keepConversations caches every list change until ctx is done
func keepConversations(ctx context.Context, bus *chat.Bus, cc stores.ConversationCache) {
	ch, cancel := bus.Subscribe(8)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if ev.Kind == chat.EventConversations {
				_ = cc.Put(ctx, ev.Conversations)
			}
		}
	}
}

func listAction(c *cli.Context) error {
	if c.Bool("cached") {
		id, err := stores.SgtSession().Load(c.Context)
		if err != nil || id.User == nil {
			return errors.New("not logged in, run: parley token <token>")
		}
		list, err := stores.SgtConversationCache(id.User.UID).List(c.Context)
		if err != nil {
			return err
		}
		printConversations(list, "")
		return nil
	}

	sess, err := startSession(c)
	if err != nil {
		return err
	}
	defer sess.Close()

	active, _ := sess.Active()
	list := sess.Conversations()
	_ = stores.SgtConversationCache(sess.User().UID).Put(c.Context, list)
	printConversations(list, active.ID)
	return nil
}

func printConversations(list []convo.Conversation, activeID string) {
	for i := range list {
		cv := &list[i]
		mark := " "
		if cv.ID == activeID {
			mark = "*"
		}
		fmt.Printf("%s %-24s %-16s %s  %s\n", mark, cv.ID, cv.Timestamp.Format("2006-01-02 15:04"), cv.Title, cv.Preview(40))
	}
}

func transcribeAction(c *cli.Context) error {
	name := c.Args().First()
	if len(name) == 0 {
		return cli.Exit("audio file is required", 2)
	}
	var text, notice string
	obs := chat.ObserverFunc(func(ev chat.Event) {
		switch ev.Kind {
		case chat.EventInput:
			text = ev.Text
		case chat.EventNotice:
			notice = ev.Text
		}
	})
	mic := chat.NewReaderMicrophone(func() (io.ReadCloser, error) { return os.Open(name) }, 0)
	sess, err := newSession(c, chat.WithObserver(obs), chat.WithMicrophone(mic), chat.WithNoticeDelay(0))
	if err != nil {
		return err
	}
	defer sess.Close()

	if err = sess.StartRecording(c.Context); err != nil {
		return err
	}
	if err = sess.WaitVoice(c.Context); err != nil {
		return err
	}
	if len(text) == 0 {
		return cli.Exit(notice, 1)
	}
	fmt.Println(text)
	return nil
}
