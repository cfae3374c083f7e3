package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warden-io/warden/agent"
	"github.com/warden-io/warden/config"
)

type cli struct {
	cfg config.Config
}

func setupFlags(cmd *cobra.Command) error {
	defaults := config.Default()
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "warden", "namespace used in storage")
	cmd.Flags().Int("http-port", defaults.HttpPort, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", string(config.STORAGE_TYPE_REDIS), "implementation of underline storage")
	cmd.Flags().Int("dispatch-capacity", defaults.DispatchCapacity, "action dispatch worker capacity")
	cmd.Flags().String("audit-log-file", "", "file to mirror audit records to")
	cmd.Flags().Int("approval-reward", defaults.Autonomy.ApprovalReward, "confidence gained per approval")
	cmd.Flags().Int("rejection-penalty", defaults.Autonomy.RejectionPenalty, "confidence lost per rejection")
	cmd.Flags().Int("promotion-confidence", defaults.Autonomy.PromotionConfidence, "confidence needed for auto-execute promotion")
	cmd.Flags().Int("promotion-min-approvals", defaults.Autonomy.PromotionMinApprovals, "approvals needed for auto-execute promotion")
	cmd.Flags().Bool("critical-requires-approval", defaults.Autonomy.CriticalRequiresApproval, "critical tier actions always gate")
	cmd.Flags().Int("max-attempts-per-execution", defaults.Engine.MaxAttemptsPerExecution, "bound on total step attempts per execution")
	cmd.Flags().Int("approval-expiry-seconds", defaults.Engine.ApprovalExpirySeconds, "seconds before a pending approval is flagged expired, 0 disables")
	cmd.Flags().StringToString("risk-override", nil, "per action risk tier overrides, action=tier")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.DispatchCapacity = viper.GetInt("dispatch-capacity")
	c.cfg.AuditLogFile = viper.GetString("audit-log-file")
	c.cfg.Autonomy.ApprovalReward = viper.GetInt("approval-reward")
	c.cfg.Autonomy.RejectionPenalty = viper.GetInt("rejection-penalty")
	c.cfg.Autonomy.PromotionConfidence = viper.GetInt("promotion-confidence")
	c.cfg.Autonomy.PromotionMinApprovals = viper.GetInt("promotion-min-approvals")
	c.cfg.Autonomy.CriticalRequiresApproval = viper.GetBool("critical-requires-approval")
	c.cfg.Engine.MaxAttemptsPerExecution = viper.GetInt("max-attempts-per-execution")
	c.cfg.Engine.ApprovalExpirySeconds = viper.GetInt("approval-expiry-seconds")
	c.cfg.RiskOverrides = viper.GetStringMapString("risk-override")
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	a, err := agent.New(c.cfg)
	if err != nil {
		panic(err)
	}
	if err := a.Start(); err != nil {
		panic(err)
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return a.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "warden",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
