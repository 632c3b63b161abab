package main

import (
	"context"
)

func (cli *commandLine) notifyOverdue(ctx context.Context, depCode string) error {
	sent, err := cli.complaintSvc.NotifyOverdue(ctx, depCode)
	if err != nil {
		return err
	}
	cli.printf("%d reminder(s) sent\n", sent)
	return nil
}
