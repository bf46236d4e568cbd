package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/AgentOS/shell/internal/api/client"
	apihttp "github.com/GriffinCanCode/AgentOS/shell/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

const usage = `usage: shellctl [-addr URL] [-timeout D] <command> [args]

commands:
  status                      orchestrator and relay statistics
  apps [-category C]          list registry entries
  start|stop|restart NAME     drive an app's lifecycle
  recover NAME                reset an errored app to installed
  uninstall NAME              remove an app from the registry
  send [-target T] TYPE [JSON] route a signal
  signals [-limit N]          recent signal history
  plugins                     list loaded plugins
  export [FILE]               write the registry document
  import [-merge] FILE        load a registry document
`

var errUsage = errors.New("invalid usage")

func main() {
	addr := os.Getenv("SHELL_ADDR")
	if addr == "" {
		addr = client.DefaultConfig().BaseURL
	}

	global := flag.NewFlagSet("shellctl", flag.ExitOnError)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	baseURL := global.String("addr", addr, "Shell API base URL")
	timeout := global.Duration("timeout", 15*time.Second, "Request timeout")
	global.Parse(os.Args[1:])

	cfg := client.DefaultConfig()
	cfg.BaseURL = *baseURL
	cfg.Timeout = *timeout

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, client.New(cfg), global.Args(), os.Stdout)
	if errors.Is(err, errUsage) {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "shellctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "status":
		return status(ctx, c, out)
	case "apps":
		return apps(ctx, c, args, out)
	case "start", "stop", "restart", "recover", "uninstall":
		return lifecycle(ctx, c, cmd, args, out)
	case "send":
		return send(ctx, c, args, out)
	case "signals":
		return signals(ctx, c, args, out)
	case "plugins":
		return plugins(ctx, c, out)
	case "export":
		return export(ctx, c, args, out)
	case "import":
		return importRegistry(ctx, c, args, out)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func status(ctx context.Context, c *client.Client, out io.Writer) error {
	s, err := c.Stats(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "apps\t%d\n", s.TotalApps)
	fmt.Fprintf(w, "running\t%d\t%s\n", s.RunningApps, strings.Join(s.Running, ", "))
	fmt.Fprintf(w, "failed\t%d\n", s.FailedApps)
	fmt.Fprintf(w, "registry\t%d\n", s.RegistrySize)
	fmt.Fprintf(w, "history\t%d\n", s.HistoryLength)
	fmt.Fprintf(w, "uptime\t%s\n", time.Duration(s.UptimeSeconds)*time.Second)
	return w.Flush()
}

func apps(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("apps", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	category := fs.String("category", "", "Filter by category")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	list, err := c.Apps(ctx, types.Category(*category))
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tCATEGORY\tSTATUS\tRUNNING\tDEPENDENCIES")
	for _, a := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			a.Name, a.Version, a.Category, a.Status, a.Running, strings.Join(a.Dependencies, ","))
	}
	return w.Flush()
}

func lifecycle(ctx context.Context, c *client.Client, cmd string, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s takes one app name", errUsage, cmd)
	}
	name := args[0]

	ops := map[string]func(context.Context, string) error{
		"start":     c.Start,
		"stop":      c.Stop,
		"restart":   c.Restart,
		"recover":   c.Recover,
		"uninstall": c.Uninstall,
	}
	if err := ops[cmd](ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s ok\n", name, cmd)
	return nil
}

func send(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	target := fs.String("target", "", "Deliver only to this module")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return fmt.Errorf("%w: send takes a signal type and an optional JSON payload", errUsage)
	}

	req := apihttp.SignalRequest{Type: fs.Arg(0), Target: *target}
	if fs.NArg() == 2 {
		if err := sonic.UnmarshalString(fs.Arg(1), &req.Payload); err != nil {
			return fmt.Errorf("payload is not JSON: %w", err)
		}
	}

	env, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s\n", env.ID, env.Type)
	return nil
}

func signals(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("signals", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", 20, "Number of signals")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	history, err := c.Signals(ctx, *limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tSOURCE\tTARGET")
	for _, env := range history {
		target := env.Target
		if env.IsBroadcast() {
			target = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", env.Timestamp.Format(time.RFC3339), env.Type, env.Source, target)
	}
	return w.Flush()
}

func plugins(ctx context.Context, c *client.Client, out io.Writer) error {
	list, err := c.Plugins(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tMAIN\tSTATE\tERROR")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Manifest.Name, p.Manifest.Version, p.Manifest.Main, p.State, p.LastError)
	}
	return w.Flush()
}

func export(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) > 1 {
		return fmt.Errorf("%w: export takes at most one file", errUsage)
	}
	snap, err := c.Export(ctx)
	if err != nil {
		return err
	}
	data, err := sonic.ConfigStd.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if len(args) == 0 {
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "exported %d apps to %s\n", len(snap.Apps), args[0])
	return nil
}

func importRegistry(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	merge := fs.Bool("merge", false, "Keep entries missing from the file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: import takes one file", errUsage)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	var snap types.RegistrySnapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%s: %w", fs.Arg(0), err)
	}
	if err := c.Import(ctx, snap, *merge); err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d apps\n", len(snap.Apps))
	return nil
}
