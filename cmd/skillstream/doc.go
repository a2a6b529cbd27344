// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 SkillStream 服务端程序入口。

# 概述

cmd/skillstream 是技能调用编排引擎的可执行入口，提供 HTTP API 服务、
健康检查和版本查询等子命令。程序支持 YAML 配置文件加载、结构化日志
（zap）、Prometheus 指标采集与后台 worker 生命周期管理。

# 核心类型

  - Server     — 主服务器，管理 HTTP 服务、后台任务与优雅关闭
  - Middleware — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    MetricsMiddleware、CORS、RateLimiter（基于 IP）
  - 后台任务：执行 worker、延迟任务提升、用量上报、队列深度采样
  - 优雅关闭：信号监听 → 关闭 HTTP → 停止后台任务 → 关闭 Redis
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
