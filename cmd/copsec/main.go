package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/copsehq/copse/config"
	"github.com/copsehq/copse/db/core"
	"github.com/copsehq/copse/db/cred"
	"github.com/copsehq/copse/db/models"
)

var (
	logger     *slog.Logger
	configPath string
)

func init() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	flag.StringVar(&configPath, "config", "copse.yaml", "Path to the store configuration file")
}

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	// genpass needs no store.
	if command == "genpass" {
		handleGenPass()
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "path", configPath, "error", err)
		os.Exit(1)
	}

	engine, err := core.Open(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to open store", "dataDir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	switch command {
	case "info":
		handleInfo(engine)
	case "create":
		handleCreate(engine, cmdArgs)
	case "get":
		handleGet(engine, cmdArgs)
	case "ls":
		handleList(engine, cmdArgs)
	case "modify":
		handleModify(engine, cmdArgs)
	case "delete":
		handleDelete(engine, cmdArgs)
	case "move":
		handleMove(engine, cmdArgs)
	case "audit":
		handleAudit(engine, cmdArgs)
	case "verify":
		handleVerify(engine)
	case "cred":
		handleCred(engine, cmdArgs)
	default:
		logger.Error("Unknown command", "command", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: copsec [flags] <command> [args...]\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  info\n")
	fmt.Fprintf(os.Stderr, "  create <path> <type> [field=value | field:int=1 | field:bool=true ...]\n")
	fmt.Fprintf(os.Stderr, "  get <path>\n")
	fmt.Fprintf(os.Stderr, "  ls <path>\n")
	fmt.Fprintf(os.Stderr, "  modify <path> <type> [field=value ...]\n")
	fmt.Fprintf(os.Stderr, "  delete <path>\n")
	fmt.Fprintf(os.Stderr, "  move <path> <newParentPath>\n")
	fmt.Fprintf(os.Stderr, "  audit [from] [to]\n")
	fmt.Fprintf(os.Stderr, "  verify\n")
	fmt.Fprintf(os.Stderr, "  cred issue <path>\n")
	fmt.Fprintf(os.Stderr, "  cred rotate <path>\n")
	fmt.Fprintf(os.Stderr, "  cred verify <path>\n")
	fmt.Fprintf(os.Stderr, "  genpass\n")
}

// parseObject builds an object from a type tag and field=value arguments.
// Typed fields use field:int= and field:bool=; everything else is a
// string.
func parseObject(typeTag string, fieldArgs []string) (*models.Object, error) {
	obj := &models.Object{
		Type:   models.TypeTag(typeTag),
		Fields: map[string]models.Value{},
	}
	for _, arg := range fieldArgs {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("field argument '%s' is not name=value", arg)
		}
		switch {
		case strings.HasSuffix(name, ":int"):
			i, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field '%s': %w", name, err)
			}
			obj.Fields[strings.TrimSuffix(name, ":int")] = models.Int(i)
		case strings.HasSuffix(name, ":bool"):
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("field '%s': %w", name, err)
			}
			obj.Fields[strings.TrimSuffix(name, ":bool")] = models.Bool(b)
		default:
			obj.Fields[name] = models.String(raw)
		}
	}
	return obj, nil
}

func printObject(obj *models.Object) {
	fmt.Printf("type: %s\n", obj.Type)
	fmt.Printf("createdAt: %d\n", obj.CreatedAt)
	for name, v := range obj.Fields {
		switch v.Kind {
		case models.KindString:
			fmt.Printf("%s: %s\n", name, v.Str)
		case models.KindInt:
			fmt.Printf("%s: %d\n", name, v.Int)
		case models.KindBool:
			fmt.Printf("%s: %t\n", name, v.Bool)
		case models.KindBytes:
			fmt.Printf("%s: <%d bytes>\n", name, len(v.Bytes))
		}
	}
}

func handleInfo(engine *core.Core) {
	info := engine.Info()
	fmt.Printf("id: %s\ncreatedAt: %d\n", info.ID, info.CreatedAt)
}

func handleCreate(engine *core.Core, args []string) {
	if len(args) < 2 {
		logger.Error("create: requires <path> <type> [field=value ...]")
		os.Exit(1)
	}
	obj, err := parseObject(args[1], args[2:])
	if err != nil {
		logger.Error("create: bad object", "error", err)
		os.Exit(1)
	}
	entry, err := engine.Create(args[0], obj)
	if err != nil {
		logger.Error("create failed", "path", args[0], "error", err)
		os.Exit(1)
	}
	fmt.Printf("created %s (sequence %d)\n", args[0], entry.Sequence)
}

func handleGet(engine *core.Core, args []string) {
	if len(args) != 1 {
		logger.Error("get: requires <path>")
		os.Exit(1)
	}
	node, err := engine.Lookup(args[0])
	if err != nil {
		logger.Error("get failed", "path", args[0], "error", err)
		os.Exit(1)
	}
	obj, err := engine.GetObject(args[0])
	if err != nil {
		logger.Error("get failed", "path", args[0], "error", err)
		os.Exit(1)
	}
	fmt.Printf("path: %s\nhash: %s\nrevision: %d\n", node.Path, node.Hash.Hex(), node.Revision)
	printObject(obj)
}

func handleList(engine *core.Core, args []string) {
	if len(args) != 1 {
		logger.Error("ls: requires <path>")
		os.Exit(1)
	}
	children, err := engine.Children(args[0])
	if err != nil {
		logger.Error("ls failed", "path", args[0], "error", err)
		os.Exit(1)
	}
	for _, child := range children {
		fmt.Printf("%s\trev=%d\t%s\n", child.Path, child.Revision, child.Hash.Hex())
	}
}

func handleModify(engine *core.Core, args []string) {
	if len(args) < 2 {
		logger.Error("modify: requires <path> <type> [field=value ...]")
		os.Exit(1)
	}
	obj, err := parseObject(args[1], args[2:])
	if err != nil {
		logger.Error("modify: bad object", "error", err)
		os.Exit(1)
	}
	entry, err := engine.Modify(args[0], obj)
	if err != nil {
		logger.Error("modify failed", "path", args[0], "error", err)
		os.Exit(1)
	}
	fmt.Printf("modified %s (sequence %d)\n", args[0], entry.Sequence)
}

func handleDelete(engine *core.Core, args []string) {
	if len(args) != 1 {
		logger.Error("delete: requires <path>")
		os.Exit(1)
	}
	entry, err := engine.Delete(args[0])
	if err != nil {
		logger.Error("delete failed", "path", args[0], "error", err)
		os.Exit(1)
	}
	fmt.Printf("deleted %s (sequence %d)\n", args[0], entry.Sequence)
}

func handleMove(engine *core.Core, args []string) {
	if len(args) != 2 {
		logger.Error("move: requires <path> <newParentPath>")
		os.Exit(1)
	}
	entry, err := engine.Move(args[0], args[1])
	if err != nil {
		logger.Error("move failed", "path", args[0], "newParent", args[1], "error", err)
		os.Exit(1)
	}
	fmt.Printf("moved %s under %s (sequence %d)\n", args[0], args[1], entry.Sequence)
}

func handleAudit(engine *core.Core, args []string) {
	var from, to uint64
	var err error
	if len(args) > 0 {
		if from, err = strconv.ParseUint(args[0], 10, 64); err != nil {
			logger.Error("audit: bad from", "error", err)
			os.Exit(1)
		}
	}
	if len(args) > 1 {
		if to, err = strconv.ParseUint(args[1], 10, 64); err != nil {
			logger.Error("audit: bad to", "error", err)
			os.Exit(1)
		}
	}
	entries, err := engine.Audit(from, to)
	if err != nil {
		logger.Error("audit failed", "error", err)
		os.Exit(1)
	}
	for _, entry := range entries {
		fmt.Printf("%d\t%d\t%s\n", entry.Sequence, entry.Timestamp, entry.EntryHash.Hex())
		for _, op := range entry.Operations {
			fmt.Printf("\t%s\t%s\n", op.Kind, op.Path)
		}
	}
}

func handleVerify(engine *core.Core) {
	if err := engine.VerifyChain(0, 0); err != nil {
		logger.Error("chain verification failed", "error", err)
		os.Exit(1)
	}
	if err := engine.VerifyReplay(); err != nil {
		logger.Error("replay verification failed", "error", err)
		os.Exit(1)
	}
	fmt.Println("ok")
}

func handleCred(engine *core.Core, args []string) {
	if len(args) != 2 {
		logger.Error("cred: requires <issue|rotate|verify> <path>")
		printUsage()
		os.Exit(1)
	}
	subCommand, path := args[0], args[1]

	switch subCommand {
	case "issue":
		secret := readSecret("New secret: ")
		entry, err := engine.IssueCredential(path, secret)
		if err != nil {
			logger.Error("cred issue failed", "path", path, "error", err)
			os.Exit(1)
		}
		fmt.Printf("issued %s (sequence %d)\n", path, entry.Sequence)
	case "rotate":
		secret := readSecret("New secret: ")
		entry, err := engine.RotateCredential(path, secret)
		if err != nil {
			logger.Error("cred rotate failed", "path", path, "error", err)
			os.Exit(1)
		}
		fmt.Printf("rotated %s (sequence %d)\n", path, entry.Sequence)
	case "verify":
		secret := readSecret("Secret: ")
		if err := engine.VerifyCredential(path, secret); err != nil {
			fmt.Println("rejected")
			os.Exit(1)
		}
		fmt.Println("ok")
	default:
		logger.Error("cred: unknown subcommand", "subcommand", subCommand)
		printUsage()
		os.Exit(1)
	}
}

func handleGenPass() {
	password, err := cred.GeneratePassword()
	if err != nil {
		logger.Error("genpass failed", "error", err)
		os.Exit(1)
	}
	fmt.Println(password)
}

// readSecret prompts on the terminal without echo. Falls back to a plain
// line read when stdin is not a terminal (pipes in scripts and tests).
func readSecret(prompt string) []byte {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			logger.Error("Failed to read secret", "error", err)
			os.Exit(1)
		}
		return secret
	}
	secret, err := readSecretLine(os.Stdin)
	if err != nil {
		logger.Error("Failed to read secret", "error", err)
		os.Exit(1)
	}
	return secret
}

// readSecretLine reads one full line, keeping interior whitespace.
// Secrets may contain spaces; only the line terminator is stripped.
func readSecretLine(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}
