// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package configuration

import (
	"bytes"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	ConfigName     = "blockvest"
	ConfigType     = "yaml"
	ConfigFilePath = ConfigName + "." + ConfigType
	EnvPrefix      = "blockvest"
)

// Load reads the configuration once at startup. Values come from Default, then the
// config file (explicit path or blockvest.yaml in . and .artifacts), then BLOCKVEST_* env.
func Load(log logrus.FieldLogger, path string) (*Blockvest, error) {
	printWorkingDir(log)
	actual, err := load(log, path)
	if err != nil {
		return nil, err
	}
	printConfig(log, actual)
	return actual, nil
}

func load(log logrus.FieldLogger, path string) (*Blockvest, error) {
	v := viper.New()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal default config")
	}
	v.SetConfigType(ConfigType)
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, errors.Wrap(err, "failed to read default config")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath(".artifacts")
	}
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			log.Warnf("config file not found (file=%v). Default configuration is used", ConfigFilePath)
		} else {
			return nil, errors.Wrapf(err, "failed to load config")
		}
	}

	actual := &Blockvest{}
	if err := v.Unmarshal(actual); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config into configuration structure")
	}
	return actual, nil
}

func printWorkingDir(log logrus.FieldLogger) {
	wd, _ := os.Getwd()
	log.Infof("Working dir: %s", wd)
}

func printConfig(log logrus.FieldLogger, c *Blockvest) {
	out, err := yaml.Marshal(cleanSecrets(c))
	if err != nil {
		log.Error(errors.Wrapf(err, "failed to marshal config structure"))
		return
	}
	log.Infof("Loaded configuration: \n %s \n", string(out))
}

func cleanSecrets(c *Blockvest) *Blockvest {
	cc := *c
	cc.DB.URL = replacePassword(cc.DB.URL)
	if cc.Wallet.PrivateKey != "" {
		cc.Wallet.PrivateKey = "<masked>"
	}
	return &cc
}

func replacePassword(url string) string {
	re := regexp.MustCompile(`^(?P<start>.*)(:(?P<pass>[^@\/:?]+)@)(?P<end>.*)$`)
	result := []byte{}
	if re.MatchString(url) {
		for _, submatches := range re.FindAllStringSubmatchIndex(url, -1) {
			result = re.ExpandString(result, `$start:<masked>@$end`, url, submatches)
		}
		return string(result)
	}
	return url
}
