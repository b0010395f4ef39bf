// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package main

import (
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/insolar/blockvest/configuration"
)

func main() {
	for filePath, cfg := range configuration.Configurations() {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			logrus.Error(errors.Wrapf(err, "failed to marshal config %s", filePath))
			return
		}
		err = ioutil.WriteFile(filePath, out, 0644)
		if err != nil {
			logrus.Error(errors.Wrapf(err, "failed to write config file"))
			return
		}
		fmt.Println(filePath)
	}
}
