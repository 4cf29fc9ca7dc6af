package main

import (
	"context"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/certificate"
	"github.com/newstandard/academy/core/user"
)

// issueCertificate issues the course certificate by hand, e.g. for training completed offline.
func (cli *commandLine) issueCertificate(email, courseID string) (certificate.Certificate, error) {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return certificate.Certificate{}, err
	}
	c, err := cli.courseRepo.GetCourse(ctx, core.CleanString(courseID))
	if err != nil {
		return certificate.Certificate{}, err
	}
	return cli.issuer.Issue(ctx, usr.ID, c.ID)
}
