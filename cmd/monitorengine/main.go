package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/oreoft/meme-trade-bot/configs"
	"github.com/oreoft/meme-trade-bot/internal/changefilter"
	"github.com/oreoft/meme-trade-bot/internal/configregistry"
	"github.com/oreoft/meme-trade-bot/internal/marketdata"
	"github.com/oreoft/meme-trade-bot/internal/monitorengine"
	"github.com/oreoft/meme-trade-bot/internal/notifier"
	"github.com/oreoft/meme-trade-bot/internal/store"
	"github.com/oreoft/meme-trade-bot/internal/trader"
	"github.com/oreoft/meme-trade-bot/internal/walletkey"
	"github.com/oreoft/meme-trade-bot/pkg/cryptoutil"
)

func main() {
	_ = godotenv.Load()

	masterKey := os.Getenv("MASTER_KEY")
	if masterKey == "" {
		panic("MASTER_KEY not set")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yml"
	}
	conf, err := configs.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}

	var st *store.Store
	switch conf.Database.Driver {
	case "mysql":
		st, err = store.NewMySQLStore(conf.Database.DSN)
	default:
		st, err = store.NewSQLiteStore(conf.Database.DSN)
	}
	if err != nil {
		panic(err)
	}
	defer st.Close()

	registry, err := configregistry.NewWithSeed(st, conf.DefaultConfigSeed())
	if err != nil {
		panic(err)
	}

	market := marketdata.New(st, registry)

	rpc := trader.NewRPCClient(registry)
	jupiter := trader.NewJupiterClient(registry)

	notify := notifier.New()
	filter := changefilter.New(changefilter.DefaultThreshold)

	traderFactory := func(encryptedSecret string) (monitorengine.TraderAPI, error) {
		secret, err := cryptoutil.Decrypt([]byte(masterKey), encryptedSecret)
		if err != nil {
			return nil, fmt.Errorf("decrypt wallet secret: %w", err)
		}
		wallet, err := walletkey.FromBase58Secret(secret)
		if err != nil {
			return nil, fmt.Errorf("derive wallet keypair: %w", err)
		}
		return trader.NewTrader(wallet, rpc, jupiter, st, market), nil
	}

	engine := monitorengine.New(st, market, notify, filter, traderFactory)

	configs.WatchAndRefresh(configPath, func() {
		log.Printf("config file changed, refreshing %d subscribers", registry.RefreshAll())
	})

	engine.RecoverAll()
	fmt.Println(color.GreenString("monitor engine started, recovery complete"))

	runAdminLoop(engine, registry, st)
}

// runAdminLoop is a line-oriented stand-in for the excluded HTTP/form API
// surface: an operator types an operation name and its arguments, reads the
// result, and the process otherwise blocks here for the lifetime of every
// running monitor worker.
func runAdminLoop(engine *monitorengine.Engine, registry *configregistry.Registry, st *store.Store) {
	fmt.Println("commands: start-simple <id> | stop-simple <id> | start-swing <id> | stop-swing <id> | refresh | stop-all | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "start-simple", "stop-simple", "start-swing", "stop-swing":
			if len(fields) < 2 {
				fmt.Println("usage:", fields[0], "<id>")
				continue
			}
			var id uint
			if _, err := fmt.Sscanf(fields[1], "%d", &id); err != nil {
				fmt.Println("invalid id:", fields[1])
				continue
			}
			ok, reason := dispatch(engine, fields[0], id)
			fmt.Printf("%s(%d) -> %v, %s\n", fields[0], id, ok, reason)
		case "refresh":
			fmt.Println(color.YellowString("refreshed %d subscribers", registry.RefreshAll()))
		case "stop-all":
			engine.StopAll()
			fmt.Println(color.YellowString("all monitors stopped"))
		case "quit", "exit":
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func dispatch(engine *monitorengine.Engine, op string, id uint) (bool, string) {
	switch op {
	case "start-simple":
		return engine.StartSimple(id)
	case "stop-simple":
		return engine.StopSimple(id)
	case "start-swing":
		return engine.StartSwing(id)
	case "stop-swing":
		return engine.StopSwing(id)
	}
	return false, "unknown op"
}
