package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/internal/storage"
	mq "github.com/yeisme/vistoria/pkg/internal/storage/mq"
	"github.com/yeisme/vistoria/pkg/queue"
)

var (
	mqCmd = &cobra.Command{
		Use:     "mq",
		Short:   "Message queue related commands",
		Aliases: []string{"messagequeue"},
	}

	// 列出已注册类型，* 标记 vs.report.* 事件当前使用的实现.
	mqListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered mq types",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			current := configs.GetConfig().MQ.GetMQType()

			fmt.Fprintln(cmd.OutOrStdout(), "Registered mq types:")

			for _, t := range mq.GetRegisteredMQTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), marker(t == current)+string(t))
			}
		},
	}

	// 订阅报告生命周期事件并逐行打印，Ctrl-C 退出；memory 类型只能看到本进程的事件.
	mqTailCmd = &cobra.Command{
		Use:   "tail [topic...]",
		Short: "follow report lifecycle events (default: all vs.report.* topics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			topics := args
			if len(topics) == 0 {
				topics = queue.ReportTopics
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withManager(ctx, func(ctx context.Context, mgr *storage.Manager) error {
				client := mgr.GetMQClient()
				if client == nil {
					return fmt.Errorf("mq not configured")
				}

				out := make(chan *message.Message)

				for _, t := range topics {
					ch, err := client.Subscribe(ctx, t)
					if err != nil {
						return fmt.Errorf("subscribe %s: %w", t, err)
					}

					go forward(ctx, ch, out)
				}

				fmt.Fprintf(cmd.ErrOrStderr(), "following %d topics on %s\n", len(topics), client.Kind())

				for {
					select {
					case <-ctx.Done():
						return nil
					case msg := <-out:
						printEvent(cmd, msg)
						msg.Ack()
					}
				}
			})
		},
	}
)

func forward(ctx context.Context, in <-chan *message.Message, out chan<- *message.Message) {
	for msg := range in {
		select {
		case out <- msg:
		case <-ctx.Done():
			msg.Nack()

			return
		}
	}
}

// printEvent 一行一个事件：时间 主题 key 负载.
func printEvent(cmd *cobra.Command, msg *message.Message) {
	ev, err := queue.ParseWatermillMessage[map[string]any](msg)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "undecodable message %s: %v\n", msg.UUID, err)

		return
	}

	payload, _ := sonic.MarshalString(ev.Payload)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %-26s key=%-6s %s\n",
		ev.Header.OccurredAt.Format("2006-01-02T15:04:05Z07:00"), ev.Header.Topic, ev.Header.Key, payload)
}

// registerMQCommands 注册 MQ 相关命令.
func registerMQCommands() {
	rootCmd.AddCommand(mqCmd)
	mqCmd.AddCommand(mqListCmd)
	mqCmd.AddCommand(mqTailCmd)
}
