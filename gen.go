// SPDX-FileCopyrightText: 2018 - 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package appearance

//go:generate go build -o target/ github.com/linuxdeepin/dde-appearance/bin/dde-appearance-daemon
//go:generate go build -o target/ github.com/linuxdeepin/dde-appearance/bin/theme-thumb-tool
