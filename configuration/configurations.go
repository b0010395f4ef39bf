// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package configuration

// Configurations lists the default config files shipped with the binaries.
func Configurations() map[string]interface{} {
	cfgs := make(map[string]interface{})
	cfgs["blockvest.yaml"] = Default()
	return cfgs
}
